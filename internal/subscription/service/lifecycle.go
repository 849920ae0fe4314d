package service

import (
	"context"
	"fmt"
	"strings"

	activitydomain "github.com/brightpane/brightpane/internal/activity/domain"
	"github.com/brightpane/brightpane/internal/pricing"
	subscriptiondomain "github.com/brightpane/brightpane/internal/subscription/domain"
	"github.com/brightpane/brightpane/internal/tenantctx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Update applies an optionally-combined patch. Each applied change appends
// one activity entry with old and new values. Seat and plan changes never
// recompute the recurring amount; the explicit recompute flag re-derives it.
func (s *Service) Update(ctx context.Context, id string, req subscriptiondomain.UpdateSubscriptionRequest) (subscriptiondomain.UpdateSubscriptionResponse, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return subscriptiondomain.UpdateSubscriptionResponse{}, subscriptiondomain.ErrInvalidTenant
	}

	subscriptionID, err := s.parseID(id, subscriptiondomain.ErrSubscriptionNotFound)
	if err != nil {
		return subscriptiondomain.UpdateSubscriptionResponse{}, err
	}

	var response subscriptiondomain.UpdateSubscriptionResponse
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscription, err := s.repo.FindByIDForUpdate(ctx, tx, tenantID, subscriptionID)
		if err != nil {
			return err
		}
		if subscription == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}

		changes := make([]string, 0, 4)
		now := s.clock.Now()

		if req.Status != nil {
			target, err := subscriptiondomain.ParseStatus(strings.TrimSpace(*req.Status))
			if err != nil {
				return err
			}
			if target != subscription.Status {
				if !subscriptiondomain.CanTransition(subscription.Status, target) {
					return subscriptiondomain.ErrInvalidTransition
				}
				if target == subscriptiondomain.SubscriptionStatusActive {
					existing, err := s.repo.FindActiveByCustomerForUpdate(ctx, tx, tenantID, subscription.CustomerID)
					if err != nil {
						return err
					}
					if existing != nil && existing.ID != subscription.ID {
						return &subscriptiondomain.ConflictError{ExistingNumber: existing.Number}
					}
				}
				from := subscription.Status
				subscription.Status = target
				if target == subscriptiondomain.SubscriptionStatusCanceled {
					subscription.CanceledAt = &now
				}
				if err := s.activitySvc.Append(ctx, tx, activitydomain.Entry{
					SubscriptionID: subscription.ID,
					Type:           activitydomain.TypeStatusChanged,
					Description:    fmt.Sprintf("Status changed from %s to %s", from, target),
					Metadata:       map[string]any{"from": string(from), "to": string(target)},
				}); err != nil {
					return err
				}
				if err := s.cascadeCustomerStatus(ctx, tx, subscription, string(target)); err != nil {
					return err
				}
				changes = append(changes, "status")
			}
		}

		if req.Seats != nil && *req.Seats != subscription.Seats {
			if *req.Seats < 1 {
				return subscriptiondomain.ErrInvalidSubscription
			}
			from := subscription.Seats
			subscription.Seats = *req.Seats

			activityType := activitydomain.TypeSeatAdded
			if *req.Seats < from {
				activityType = activitydomain.TypeSeatRemoved
			}
			if err := s.activitySvc.Append(ctx, tx, activitydomain.Entry{
				SubscriptionID: subscription.ID,
				Type:           activityType,
				Description:    fmt.Sprintf("Seats changed from %d to %d", from, *req.Seats),
				Metadata:       map[string]any{"from": from, "to": *req.Seats},
			}); err != nil {
				return err
			}
			changes = append(changes, "seats")
		}

		if req.PlanID != nil {
			planID, err := s.parseID(*req.PlanID, subscriptiondomain.ErrPlanNotFound)
			if err != nil {
				return err
			}
			if planID != subscription.PlanID {
				plan, err := s.planRepo.FindByID(ctx, tx, tenantID, planID)
				if err != nil {
					return err
				}
				if plan == nil {
					return subscriptiondomain.ErrPlanNotFound
				}
				previous, err := s.planRepo.FindByID(ctx, tx, tenantID, subscription.PlanID)
				if err != nil {
					return err
				}
				previousName := ""
				if previous != nil {
					previousName = previous.Name
				}

				subscription.PlanID = planID
				if err := s.activitySvc.Append(ctx, tx, activitydomain.Entry{
					SubscriptionID: subscription.ID,
					Type:           activitydomain.TypePlanChanged,
					Description:    fmt.Sprintf("Plan changed from %s to %s", previousName, plan.Name),
					Metadata:       map[string]any{"from": previousName, "to": plan.Name},
				}); err != nil {
					return err
				}
				if err := s.customerRepo.UpdateBillingSnapshot(ctx, tx, tenantID, subscription.CustomerID, plan.Name, string(subscription.Status)); err != nil {
					return err
				}
				changes = append(changes, "plan")
			}
		}

		if req.Notes != nil && *req.Notes != subscription.Notes {
			from := subscription.Notes
			subscription.Notes = *req.Notes
			if err := s.activitySvc.Append(ctx, tx, activitydomain.Entry{
				SubscriptionID: subscription.ID,
				Type:           activitydomain.TypeNotesUpdated,
				Description:    "Notes updated",
				Metadata:       map[string]any{"from": from, "to": *req.Notes},
			}); err != nil {
				return err
			}
			changes = append(changes, "notes")
		}

		if req.Recompute {
			plan, err := s.planRepo.FindByID(ctx, tx, tenantID, subscription.PlanID)
			if err != nil {
				return err
			}
			if plan == nil {
				return subscriptiondomain.ErrPlanNotFound
			}

			base, err := pricing.ResolveBaseAmount(planPricing(plan), subscription.BillingCycle, subscription.Seats)
			if err != nil {
				return err
			}
			accountDiscount, err := s.customerRepo.FindDiscount(ctx, tx, tenantID, subscription.CustomerID)
			if err != nil {
				return err
			}
			// One-off discounts were spent on the first invoice; only a
			// recurring one carries into the recomputed amount.
			if accountDiscount != nil && !accountDiscount.Recurring {
				accountDiscount = nil
			}
			breakdown := pricing.ApplyDiscounts(base, accountPricingDiscount(accountDiscount), nil)

			if breakdown.NetAmount != subscription.Amount {
				from := subscription.Amount
				subscription.Amount = breakdown.NetAmount
				s.log.Info("recurring amount recomputed",
					zap.String("subscription", subscription.Number),
					zap.Int64("from", from),
					zap.Int64("to", breakdown.NetAmount),
				)
				if err := s.activitySvc.Append(ctx, tx, activitydomain.Entry{
					SubscriptionID: subscription.ID,
					Type:           activitydomain.TypeAmountRecomputed,
					Description:    fmt.Sprintf("Recurring amount recomputed from %d to %d", from, breakdown.NetAmount),
					Metadata:       map[string]any{"from": from, "to": breakdown.NetAmount},
				}); err != nil {
					return err
				}
				changes = append(changes, "amount")
			}
		}

		if len(changes) > 0 {
			subscription.UpdatedAt = now
			if err := s.repo.Update(ctx, tx, subscription); err != nil {
				return err
			}
		}

		response = subscriptiondomain.UpdateSubscriptionResponse{
			Subscription: *subscription,
			Changes:      changes,
		}
		return nil
	})
	if err != nil {
		return subscriptiondomain.UpdateSubscriptionResponse{}, err
	}
	return response, nil
}

// Cancel is a soft delete: the row is retained in status canceled and the
// customer's denormalized status is cascaded.
func (s *Service) Cancel(ctx context.Context, id string) (subscriptiondomain.Subscription, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidTenant
	}

	subscriptionID, err := s.parseID(id, subscriptiondomain.ErrSubscriptionNotFound)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	var canceled subscriptiondomain.Subscription
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscription, err := s.repo.FindByIDForUpdate(ctx, tx, tenantID, subscriptionID)
		if err != nil {
			return err
		}
		if subscription == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}
		if !subscriptiondomain.CanTransition(subscription.Status, subscriptiondomain.SubscriptionStatusCanceled) {
			return subscriptiondomain.ErrInvalidTransition
		}

		now := s.clock.Now()
		from := subscription.Status
		subscription.Status = subscriptiondomain.SubscriptionStatusCanceled
		subscription.CanceledAt = &now
		subscription.UpdatedAt = now

		if err := s.repo.Update(ctx, tx, subscription); err != nil {
			return err
		}
		if err := s.activitySvc.Append(ctx, tx, activitydomain.Entry{
			SubscriptionID: subscription.ID,
			Type:           activitydomain.TypeCanceled,
			Description:    fmt.Sprintf("Subscription %s canceled", subscription.Number),
			Metadata:       map[string]any{"from": string(from)},
		}); err != nil {
			return err
		}
		if err := s.cascadeCustomerStatus(ctx, tx, subscription, string(subscriptiondomain.SubscriptionStatusCanceled)); err != nil {
			return err
		}

		canceled = *subscription
		return nil
	})
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	s.log.Info("subscription canceled",
		zap.String("subscription_id", canceled.ID.String()),
		zap.String("number", canceled.Number),
	)
	return canceled, nil
}

func (s *Service) cascadeCustomerStatus(ctx context.Context, tx *gorm.DB, subscription *subscriptiondomain.Subscription, status string) error {
	plan, err := s.planRepo.FindByID(ctx, tx, subscription.TenantID, subscription.PlanID)
	if err != nil {
		return err
	}
	planLabel := ""
	if plan != nil {
		planLabel = plan.Name
	}
	return s.customerRepo.UpdateBillingSnapshot(ctx, tx, subscription.TenantID, subscription.CustomerID, planLabel, status)
}
