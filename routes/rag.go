package routes

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"pdf-rag-chatbot/internal/logger"
	"pdf-rag-chatbot/middleware"
	"pdf-rag-chatbot/models"
	"pdf-rag-chatbot/services"
	"pdf-rag-chatbot/utils"

	"github.com/gin-gonic/gin"
)

const (
	chatApology      = "I apologize, but I encountered an error while processing your question. Please try again."
	chatErrorPrefix  = "An error occurred while processing your query: "
	uploadSuccessMsg = "PDF uploaded and processed successfully"
	deleteSuccessMsg = "All data deleted successfully"
)

// RAGDependencies are the components the HTTP surface drives.
type RAGDependencies struct {
	Engine   *services.RAGEngine
	Ingestor *services.Ingestor

	// MongoConnected reports whether the durable store is reachable. Nil
	// means no durable store is configured.
	MongoConnected func() bool

	MaxFileSize int64
	SimilarityK int
}

func SetupRAGRoutes(router *gin.Engine, deps RAGDependencies) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "RAG Chatbot API is running",
			"status":  "healthy",
		})
	})

	router.GET("/health", func(c *gin.Context) {
		connected := false
		if deps.MongoConnected != nil {
			connected = deps.MongoConnected()
		}
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:           "healthy",
			MongoConnected:   connected,
			ComponentsLoaded: deps.Engine.Ready(),
		})
	})

	router.POST("/upload-pdf", middleware.RequestSizeLimit(deps.MaxFileSize), func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				utils.RespondWithTooLarge(c, deps.MaxFileSize, -1)
				return
			}
			utils.RespondWithBadRequest(c, "No file provided", gin.H{"error": err.Error()})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read upload", gin.H{"error": err.Error()})
			return
		}
		defer file.Close()

		log := logger.With("request_id", middleware.GetRequestID(c), "filename", fileHeader.Filename)
		log.Info("Processing file", "size", fileHeader.Size)

		result, err := deps.Ingestor.Ingest(c.Request.Context(), fileHeader.Filename, file)
		if err != nil {
			respondIngestError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.UploadResponse{
			Message:      uploadSuccessMsg,
			IngestResult: *result,
		})
	})

	router.DELETE("/delete-all-data", func(c *gin.Context) {
		storage, err := deps.Ingestor.DeleteAll(c.Request.Context())
		if err != nil {
			utils.RespondWithInternalError(c, fmt.Sprintf("Error deleting data: %v", err), nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": deleteSuccessMsg,
			"storage": storage,
		})
	})

	router.GET("/documents", func(c *gin.Context) {
		docs, err := deps.Ingestor.Documents(c.Request.Context())
		if err != nil {
			logger.Error("Error listing documents", "error", err, "request_id", middleware.GetRequestID(c))
			utils.RespondWithInternalError(c, "Error listing documents", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, models.DocumentsResponse{Documents: docs, Total: len(docs)})
	})

	router.POST("/chat", func(c *gin.Context) {
		query := c.PostForm("query")
		if strings.TrimSpace(query) == "" {
			utils.RespondWithBadRequest(c, "Query cannot be empty", nil)
			return
		}

		answer, err := deps.Engine.Answer(c.Request.Context(), query)
		if err != nil {
			logger.Error("Error in chat endpoint",
				"error", err,
				"request_id", middleware.GetRequestID(c),
			)
			c.JSON(http.StatusInternalServerError, models.ChatResponse{
				Response:        chatApology,
				SourceDocuments: []models.SourceDocument{},
				Query:           query,
				Error:           chatErrorPrefix + err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, models.ChatResponse{
			Response:        answer.Response,
			SourceDocuments: answer.Sources,
			Query:           query,
		})
	})

	router.POST("/similarity-search", func(c *gin.Context) {
		query := c.PostForm("query")
		if strings.TrimSpace(query) == "" {
			utils.RespondWithBadRequest(c, "Query cannot be empty", nil)
			return
		}

		k := deps.SimilarityK
		if raw := c.PostForm("k"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				utils.RespondWithBadRequest(c, "k must be a positive integer", gin.H{"k": raw})
				return
			}
			k = parsed
		}

		results, err := deps.Engine.SimilaritySearch(c.Request.Context(), query, k)
		if errors.Is(err, services.ErrEmptyCorpus) {
			utils.RespondWithNotFound(c, "no_documents", "No documents available")
			return
		}
		if err != nil {
			logger.Error("Error in similarity search", "error", err, "request_id", middleware.GetRequestID(c))
			utils.RespondWithInternalError(c, "Error in similarity search", gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, models.SimilarityResponse{
			Query:   query,
			Results: results,
			Count:   len(results),
		})
	})
}

func respondIngestError(c *gin.Context, err error) {
	var (
		verr  *services.ValidationError
		empty *services.EmptyDocumentError
		xerr  *services.ExtractionError
	)
	switch {
	case errors.As(err, &verr):
		utils.RespondWithBadRequest(c, verr.Message, nil)
	case errors.As(err, &empty):
		utils.RespondWithBadRequest(c, "No text chunks could be created from the PDF", gin.H{"filename": empty.Filename})
	case errors.As(err, &xerr) && !xerr.Timeout:
		utils.RespondWithBadRequest(c, "Could not read the PDF", gin.H{"error": err.Error()})
	default:
		logger.Error("Error processing PDF", "error", err, "request_id", middleware.GetRequestID(c))
		utils.RespondWithInternalError(c, fmt.Sprintf("Error processing PDF: %v", err), nil)
	}
}
