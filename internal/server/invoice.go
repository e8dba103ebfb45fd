package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/invoiceledger/internal/invoice/domain"
)

func respondInvoice(c *gin.Context, status int, resp invoicedomain.Response) {
	c.Header(headerETag, etag(resp.Version))
	c.JSON(status, gin.H{"data": resp})
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req invoicedomain.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondInvoice(c, http.StatusCreated, resp)
}

// ListInvoices filters on effective status, so status=overdue includes sent
// invoices past their due date.
func (s *Server) ListInvoices(c *gin.Context) {
	var req invoicedomain.ListInvoiceRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.Invoices,
		"page_info": resp.PageInfo,
	})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	resp, err := s.invoiceSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondInvoice(c, http.StatusOK, resp)
}

func (s *Server) AddLineItem(c *gin.Context) {
	version, err := expectedVersion(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var item invoicedomain.LineItemInput
	if err := c.ShouldBindJSON(&item); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.AddLineItem(c.Request.Context(), invoicedomain.AddLineItemRequest{
		InvoiceID:       c.Param("id"),
		ExpectedVersion: version,
		Item:            item,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondInvoice(c, http.StatusOK, resp)
}

func (s *Server) UpdateLineItem(c *gin.Context) {
	version, err := expectedVersion(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	index, err := lineItemIndex(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var item invoicedomain.LineItemInput
	if err := c.ShouldBindJSON(&item); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.UpdateLineItem(c.Request.Context(), invoicedomain.UpdateLineItemRequest{
		InvoiceID:       c.Param("id"),
		ExpectedVersion: version,
		Index:           index,
		Item:            item,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondInvoice(c, http.StatusOK, resp)
}

func (s *Server) RemoveLineItem(c *gin.Context) {
	version, err := expectedVersion(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	index, err := lineItemIndex(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.invoiceSvc.RemoveLineItem(c.Request.Context(), invoicedomain.RemoveLineItemRequest{
		InvoiceID:       c.Param("id"),
		ExpectedVersion: version,
		Index:           index,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondInvoice(c, http.StatusOK, resp)
}

type transitionFunc func(*gin.Context, invoicedomain.TransitionRequest) (invoicedomain.Response, error)

func (s *Server) transition(fn transitionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		version, err := expectedVersion(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		resp, err := fn(c, invoicedomain.TransitionRequest{
			InvoiceID:       c.Param("id"),
			ExpectedVersion: version,
		})
		if err != nil {
			AbortWithError(c, err)
			return
		}
		respondInvoice(c, http.StatusOK, resp)
	}
}

func (s *Server) FinalizeInvoice(c *gin.Context) {
	s.transition(func(c *gin.Context, req invoicedomain.TransitionRequest) (invoicedomain.Response, error) {
		return s.invoiceSvc.Finalize(c.Request.Context(), req)
	})(c)
}

func (s *Server) CancelInvoice(c *gin.Context) {
	s.transition(func(c *gin.Context, req invoicedomain.TransitionRequest) (invoicedomain.Response, error) {
		return s.invoiceSvc.Cancel(c.Request.Context(), req)
	})(c)
}

func (s *Server) ArchiveInvoice(c *gin.Context) {
	s.transition(func(c *gin.Context, req invoicedomain.TransitionRequest) (invoicedomain.Response, error) {
		return s.invoiceSvc.Archive(c.Request.Context(), req)
	})(c)
}

func (s *Server) RecordPayment(c *gin.Context) {
	version, err := expectedVersion(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req invoicedomain.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.InvoiceID = c.Param("id")
	req.ExpectedVersion = version

	resp, err := s.invoiceSvc.RecordPayment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondInvoice(c, http.StatusOK, resp)
}

func (s *Server) SendReminder(c *gin.Context) {
	version, err := expectedVersion(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req invoicedomain.SendReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.InvoiceID = c.Param("id")
	req.ExpectedVersion = version

	resp, err := s.invoiceSvc.SendReminder(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondInvoice(c, http.StatusOK, resp)
}

// GetDueReminder is advisory. The ETag lets a caller send the recommended
// tier conditionally.
func (s *Server) GetDueReminder(c *gin.Context) {
	resp, err := s.invoiceSvc.DueReminder(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Header(headerETag, etag(resp.Version))
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AddNote(c *gin.Context) {
	version, err := expectedVersion(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req invoicedomain.AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.InvoiceID = c.Param("id")
	req.ExpectedVersion = version

	resp, err := s.invoiceSvc.AddNote(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondInvoice(c, http.StatusOK, resp)
}
