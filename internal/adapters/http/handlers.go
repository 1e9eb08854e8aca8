package httpadapter

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

type uploadResponse struct {
	Message          string                  `json:"message"`
	DocumentName     string                  `json:"document_name"`
	DocumentType     domain.DocumentType     `json:"document_type"`
	DocumentURL      string                  `json:"document_url"`
	ExtractedTextURL string                  `json:"extracted_text_url"`
	ExtractedData    domain.ExtractionResult `json:"extracted_data"`
	Classification   domain.Classification   `json:"classification"`
	RecordPersisted  bool                    `json:"record_persisted"`
}

type searchRequest struct {
	Query string `json:"query"`
	Email string `json:"email"`
}

type searchResponse struct {
	Answer          string   `json:"answer"`
	SourceDocuments []string `json:"source_documents"`
}

func (rt *Router) uploadDocument(c *gin.Context) {
	if rt.cfg.MaxUploadBytes > 0 {
		// Multipart framing adds a little on top of the file itself.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, rt.cfg.MaxUploadBytes+1<<20)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		if isBodyTooLarge(err) {
			writeErrorMessage(c, http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
			return
		}
		writeErrorMessage(c, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	email := emailParam(c)
	if email == "" {
		writeErrorMessage(c, http.StatusBadRequest, "form field 'email' is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		writeErrorMessage(c, http.StatusBadRequest, "uploaded file cannot be read")
		return
	}
	defer file.Close()

	result, err := rt.ingest.Upload(c.Request.Context(), domain.UploadRequest{
		Email:    email,
		Filename: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Body:     file,
	})
	if err != nil {
		rt.logFailure(c.Request.Context(), "upload", err)
		writeError(c, err, "")
		return
	}

	c.JSON(http.StatusOK, uploadResponse{
		Message:          "Uploaded and processed successfully.",
		DocumentName:     result.Document.Name,
		DocumentType:     result.Document.Type,
		DocumentURL:      result.Document.DocumentURL,
		ExtractedTextURL: result.Document.TextURL,
		ExtractedData:    result.Extraction,
		Classification:   result.Classification,
		RecordPersisted:  result.RecordPersisted,
	})
}

func (rt *Router) listDocuments(c *gin.Context) {
	docs, err := rt.catalog.ListDocuments(c.Request.Context(), emailParam(c))
	if err != nil {
		rt.logFailure(c.Request.Context(), "list_documents", err)
		writeError(c, err, "No documents found for this user.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (rt *Router) listRecords(c *gin.Context) {
	set, err := rt.catalog.ListRecords(c.Request.Context(), emailParam(c))
	if err != nil {
		rt.logFailure(c.Request.Context(), "list_records", err)
		writeError(c, err, "No documents found for this email.")
		return
	}
	c.JSON(http.StatusOK, set)
}

func (rt *Router) exportRecords(c *gin.Context) {
	file, err := rt.catalog.ExportRecords(c.Request.Context(), emailParam(c))
	if err != nil {
		rt.logFailure(c.Request.Context(), "export_records", err)
		writeError(c, err, "No documents found for this email.")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

func (rt *Router) searchAnswer(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorMessage(c, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Query) == "" || strings.TrimSpace(req.Email) == "" {
		writeErrorMessage(c, http.StatusBadRequest, "query and email are required")
		return
	}

	answer, err := rt.query.Answer(c.Request.Context(), req.Query, req.Email)
	if err != nil {
		rt.logFailure(c.Request.Context(), "search_answer", err)
		writeError(c, err, "No relevant documents found for this query.")
		return
	}
	c.JSON(http.StatusOK, searchResponse{Answer: answer.Text, SourceDocuments: answer.SourceDocuments})
}
