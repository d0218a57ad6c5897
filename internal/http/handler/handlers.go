package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/service"
)

// registerRequest is the JSON body accepted by POST /documents.
type registerRequest struct {
	Filename        string   `json:"filename"`
	FileHash        string   `json:"file_hash"`
	FileSize        int64    `json:"file_size"`
	MimeType        string   `json:"mime_type"`
	UploaderAddress string   `json:"uploader_address"`
	Tags            []string `json:"tags"`
}

// verifyRequest is the JSON body accepted by POST /verify.
type verifyRequest struct {
	FileHash        string `json:"file_hash"`
	VerifierAddress string `json:"verifier_address"`
}

// RegisterDocument handles POST /documents: register a fingerprint and anchor
// it with a pending ledger entry.
func RegisterDocument(svc service.RegistrationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req registerRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		res, err := svc.Register(c.UserContext(), service.RegisterInput{
			Filename:        req.Filename,
			FileHash:        req.FileHash,
			FileSize:        req.FileSize,
			MimeType:        req.MimeType,
			UploaderAddress: req.UploaderAddress,
			Tags:            req.Tags,
		})
		if err != nil {
			var conflict *service.ConflictError
			switch {
			case errors.As(err, &conflict):
				return writeConflict(c, conflict.DocumentID, string(conflict.Status))
			case errors.Is(err, service.ErrFilenameRequired):
				return writeError(c, fiber.StatusBadRequest, "FILENAME_REQUIRED", err.Error())
			case errors.Is(err, service.ErrHashRequired):
				return writeError(c, fiber.StatusBadRequest, "HASH_REQUIRED", err.Error())
			case errors.Is(err, service.ErrHashFormat):
				return writeError(c, fiber.StatusBadRequest, "INVALID_HASH", err.Error())
			case errors.Is(err, service.ErrSizeRequired):
				return writeError(c, fiber.StatusBadRequest, "INVALID_SIZE", err.Error())
			case errors.Is(err, service.ErrFileTooLarge):
				return writeError(c, fiber.StatusBadRequest, "FILE_TOO_LARGE", err.Error())
			default:
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// VerifyDocument handles POST /verify: classify a fingerprint as verified,
// tampered, or not_found.
func VerifyDocument(svc service.VerificationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req verifyRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		res, err := svc.Verify(c.UserContext(), req.FileHash, req.VerifierAddress)
		if err != nil {
			if errors.Is(err, service.ErrHashRequired) {
				return writeError(c, fiber.StatusBadRequest, "HASH_REQUIRED", err.Error())
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}

// ArchiveDocument handles POST /documents/:id/content: attach the original
// file bytes to a registered document (multipart/form-data, field name: file).
func ArchiveDocument(svc service.RegistrationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		doc, err := svc.Archive(c.UserContext(), id, f, fh.Size, ct)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrNotFound):
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
			case errors.Is(err, service.ErrContentMismatch):
				return writeError(c, fiber.StatusUnprocessableEntity, "CONTENT_MISMATCH", err.Error())
			default:
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	}
}

// ArchiveLink handles GET /documents/:id/content-url: a presigned, time-limited
// download URL for archived content.
func ArchiveLink(svc service.RegistrationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		url, err := svc.ArchiveURL(c.UserContext(), id, 15*time.Minute)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(fiber.Map{"url": url})
	}
}

// ListDocuments handles GET /documents with limit, offset and an optional
// status filter.
func ListDocuments(svc service.QueryService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limitStr := c.Query("limit", "10")
		offsetStr := c.Query("offset", "0")
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.ListDocuments(c.UserContext(), c.Query("status"), limit, offset)
		if err != nil {
			if errors.Is(err, service.ErrInvalidStatus) {
				return writeError(c, fiber.StatusBadRequest, "INVALID_STATUS", "invalid status filter")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}

// ListVerifications handles GET /verifications: the audit trail, newest first.
func ListVerifications(svc service.QueryService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limitStr := c.Query("limit", "10")
		offsetStr := c.Query("offset", "0")
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.ListVerifications(c.UserContext(), limit, offset)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}

// exportPageSize is how many documents each CSV export page pulls.
const exportPageSize = 200

// ExportDocumentsCSV handles GET /documents/export: the full registry as CSV,
// paged through the same query service the JSON listing uses. Rows collect in
// a buffer so a store error on a later page still yields a clean error body.
func ExportDocumentsCSV(svc service.QueryService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.Write([]string{"id", "filename", "file_hash", "file_size", "status", "transaction_id", "block_number", "created_at"}); err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}

		for offset := 0; ; offset += exportPageSize {
			res, err := svc.ListDocuments(c.UserContext(), c.Query("status"), exportPageSize, offset)
			if err != nil {
				if errors.Is(err, service.ErrInvalidStatus) {
					return writeError(c, fiber.StatusBadRequest, "INVALID_STATUS", "invalid status filter")
				}
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}

			for _, item := range res.Items {
				txID, blockNum := "", ""
				if item.Ledger != nil {
					txID = item.Ledger.TransactionID
					if item.Ledger.BlockNumber > 0 {
						blockNum = strconv.FormatInt(item.Ledger.BlockNumber, 10)
					}
				}
				row := []string{
					item.ID,
					item.Filename,
					item.FileHash,
					strconv.FormatInt(item.FileSize, 10),
					string(item.Status),
					txID,
					blockNum,
					item.CreatedAt.UTC().Format(time.RFC3339),
				}
				if err := w.Write(row); err != nil {
					return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
				}
			}

			if len(res.Items) < exportPageSize {
				break
			}
		}

		w.Flush()
		if err := w.Error(); err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}

		c.Set(fiber.HeaderContentType, "text/csv")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="documents.csv"`)
		return c.Send(buf.Bytes())
	}
}

// HealthCheck reports DB connectivity.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a simple liveness check.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}
