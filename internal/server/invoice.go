package server

import (
	"net/http"
	"os"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	invoicedomain "github.com/brightpane/brightpane/internal/invoice/domain"
	"github.com/brightpane/brightpane/pkg/db/pagination"
)

func (s *Server) CreateStandaloneInvoice(c *gin.Context) {
	var req invoicedomain.CreateStandaloneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	created, err := s.invoiceSvc.CreateStandalone(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": created})
}

func (s *Server) ListInvoices(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status     string `form:"status"`
		CustomerID string `form:"customer_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := invoicedomain.ListInvoiceRequest{Pagination: query.Pagination}
	if raw := strings.TrimSpace(query.Status); raw != "" {
		status, err := invoicedomain.ParseStatus(raw)
		if err != nil {
			AbortWithError(c, newValidationError("status", "invalid_status", "invalid invoice status"))
			return
		}
		req.Status = &status
	}
	if raw := strings.TrimSpace(query.CustomerID); raw != "" {
		customerID, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("customer_id", "invalid_customer_id", "invalid customer id"))
			return
		}
		req.CustomerID = &customerID
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Invoices, "page_info": resp.PageInfo})
}

func (s *Server) GetInvoice(c *gin.Context) {
	detail, err := s.invoiceSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": detail})
}

func (s *Server) FinalizeInvoice(c *gin.Context) {
	finalized, err := s.invoiceSvc.Finalize(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": finalized})
}

func (s *Server) PayInvoice(c *gin.Context) {
	paid, err := s.invoiceSvc.MarkPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": paid})
}

// GetInvoiceDocument streams the rendered PDF. 404 until a render succeeds.
func (s *Server) GetInvoiceDocument(c *gin.Context) {
	detail, err := s.invoiceSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if detail.PDFPath == nil || strings.TrimSpace(*detail.PDFPath) == "" {
		AbortWithError(c, invoicedomain.ErrDocumentNotRendered)
		return
	}
	if _, err := os.Stat(*detail.PDFPath); err != nil {
		AbortWithError(c, invoicedomain.ErrDocumentNotRendered)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+detail.Number+`.pdf"`)
	c.Header("Content-Type", "application/pdf")
	c.File(*detail.PDFPath)
}

func (s *Server) RenderInvoiceDocument(c *gin.Context) {
	path, err := s.invoiceSvc.RenderDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"pdf_path": path}})
}
