package handlers

import (
	"encoding/json"
	"io"
	"math/big"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ownafarm/ownafarm-gateway/internal/client/backend"
	"github.com/ownafarm/ownafarm-gateway/internal/registration"
	"github.com/ownafarm/ownafarm-gateway/internal/upload"
)

// maxDocumentSize caps a single uploaded document at 10 MiB.
const maxDocumentSize = 10 << 20

// FarmerHandler serves registration and invoice submission.
type FarmerHandler struct {
	service *registration.Service
	log     *zap.Logger
}

// NewFarmerHandler wires the registration handler.
func NewFarmerHandler(service *registration.Service, log *zap.Logger) *FarmerHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &FarmerHandler{service: service, log: log}
}

// Register accepts a multipart registration: JSON parts "personal_info" and
// "business_info" plus one file part per document type.
// POST /farmers/registrations
func (h *FarmerHandler) Register(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		sendError(c, http.StatusBadRequest, "expected multipart form: "+err.Error())
		return
	}

	var personal backend.PersonalInfo
	if !h.bindJSONField(c, form, "personal_info", &personal) {
		return
	}
	var business backend.BusinessInfo
	if !h.bindJSONField(c, form, "business_info", &business) {
		return
	}

	files, err := collectFiles(form)
	if err != nil {
		sendError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := upload.Validate(files); err != nil {
		sendError(c, http.StatusBadRequest, err.Error())
		return
	}

	farmerID, err := h.service.Register(c.Request.Context(), registration.Input{
		Personal: personal,
		Business: business,
		Files:    files,
	})
	if err != nil {
		switch {
		case errors.Is(err, registration.ErrDuplicateRegistration):
			sendError(c, http.StatusConflict, err.Error())
		case errors.Is(err, registration.ErrInvalidRegistration):
			sendError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, upload.ErrMissingRequiredDocuments):
			sendError(c, http.StatusBadRequest, err.Error())
		default:
			sendError(c, http.StatusBadGateway, err.Error())
		}
		return
	}

	sendSuccess(c, http.StatusCreated, "registration submitted for review", gin.H{
		"farmer_id": farmerID,
	})
}

type submitInvoiceRequest struct {
	OfftakerEmail string `json:"offtaker_email" binding:"required,email"`
	TargetFund    string `json:"target_fund" binding:"required"`
	YieldBps      uint16 `json:"yield_bps" binding:"required"`
	DurationDays  uint32 `json:"duration_days" binding:"required"`
}

// SubmitInvoice mints an invoice NFT for an approved farmer.
// POST /farmers/invoices
func (h *FarmerHandler) SubmitInvoice(c *gin.Context) {
	var req submitInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	targetFund, ok := new(big.Int).SetString(req.TargetFund, 10)
	if !ok || targetFund.Sign() <= 0 {
		sendError(c, http.StatusBadRequest, "target_fund must be a positive integer string")
		return
	}

	minted, err := h.service.SubmitInvoice(c.Request.Context(), registration.InvoiceTerms{
		OfftakerEmail: req.OfftakerEmail,
		TargetFund:    targetFund,
		YieldBps:      req.YieldBps,
		DurationDays:  req.DurationDays,
	})
	if err != nil {
		sendError(c, http.StatusBadGateway, err.Error())
		return
	}

	sendSuccess(c, http.StatusCreated, "invoice submitted", gin.H{
		"token_id": minted.TokenID,
		"tx_hash":  minted.TxHash,
	})
}

func (h *FarmerHandler) bindJSONField(c *gin.Context, form *multipart.Form, field string, out interface{}) bool {
	values := form.Value[field]
	if len(values) == 0 {
		sendError(c, http.StatusBadRequest, "missing form field "+field)
		return false
	}
	if err := json.Unmarshal([]byte(values[0]), out); err != nil {
		sendError(c, http.StatusBadRequest, "invalid "+field+": "+err.Error())
		return false
	}
	return true
}

func collectFiles(form *multipart.Form) (map[string]upload.File, error) {
	files := make(map[string]upload.File)
	for docType, headers := range form.File {
		if len(headers) == 0 {
			continue
		}
		header := headers[0]
		if header.Size > maxDocumentSize {
			return nil, errors.Errorf("document %s exceeds the 10MB limit", docType)
		}
		f, err := header.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open uploaded document %s", docType)
		}
		data, err := io.ReadAll(io.LimitReader(f, maxDocumentSize+1))
		f.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read uploaded document %s", docType)
		}
		if len(data) > maxDocumentSize {
			return nil, errors.Errorf("document %s exceeds the 10MB limit", docType)
		}
		files[docType] = upload.File{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		}
	}
	return files, nil
}
