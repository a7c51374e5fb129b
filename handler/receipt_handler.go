package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Aashish23092/slice-receipts/dto"
	"github.com/Aashish23092/slice-receipts/service"
)

// ReceiptHandler handles receipt scan requests
type ReceiptHandler struct {
	receiptService *service.ReceiptService
	maxFileSize    int64
}

func NewReceiptHandler(receiptService *service.ReceiptService, maxFileSize int64) *ReceiptHandler {
	return &ReceiptHandler{
		receiptService: receiptService,
		maxFileSize:    maxFileSize,
	}
}

// ScanBill handles POST /scan-bill
func (h *ReceiptHandler) ScanBill(c *gin.Context) {
	file, _ := c.FormFile("file")
	req := dto.ScanRequest{
		File:          file,
		IncludeDebug:  flag(c, "include_debug"),
		UseHybrid:     formBool(c, "use_hybrid"),
		ForceFallback: flag(c, "force_fallback"),
	}
	if err := req.Validate(h.maxFileSize); err != nil {
		sendError(c, err)
		return
	}

	reader, err := req.File.Open()
	if err != nil {
		sendError(c, err)
		return
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		sendError(c, err)
		return
	}

	opts := service.ScanOptions{
		IncludeDebug:  req.IncludeDebug,
		UseHybrid:     req.UseHybrid == nil || *req.UseHybrid,
		ForceFallback: req.ForceFallback,
	}
	upload := service.Upload{Data: data, Filename: req.File.Filename, ContentType: req.File.Header.Get("Content-Type")}

	resp, err := h.receiptService.ScanReceipt(c.Request.Context(), upload, opts)
	if errors.Is(err, dto.ErrInvalidImage) {
		c.JSON(http.StatusBadRequest, dto.ScanResponse{
			Items:       []dto.ParsedItem{},
			NeedsReview: []dto.NeedsReviewEntry{},
			Error:       dto.ErrInvalidImage.Error(),
		})
		return
	}
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// formBool reads a boolean from the query string or the form body. Unset or
// unparsable values return nil.
func formBool(c *gin.Context, key string) *bool {
	raw, ok := c.GetQuery(key)
	if !ok {
		raw, ok = c.GetPostForm(key)
	}
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return &v
}

func flag(c *gin.Context, key string) bool {
	v := formBool(c, key)
	return v != nil && *v
}
