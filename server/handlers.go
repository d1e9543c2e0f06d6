package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kbrouter/kbrouter/chatbot"
	"github.com/kbrouter/kbrouter/knowledge"
)

const pdfContentType = "application/pdf"

// chatbotResult is the "results" payload of POST /chatbot.
type chatbotResult struct {
	chatbot.State
	AnswerHTML string `json:"answer_html,omitempty"`
}

func (s *Server) handleTest(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Deployment Pipeline Working"})
}

func (s *Server) handleChatbot(c *gin.Context) {
	query := strings.TrimSpace(c.PostForm("query"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Missing 'query' in request body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.RequestTimeout)
	defer cancel()

	state, err := s.opts.Chatbot.Ask(ctx, query)
	if err != nil {
		if errors.Is(err, chatbot.ErrEmptyQuestion) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	res := chatbotResult{State: state}
	if c.PostForm("format") == "html" || c.Query("format") == "html" {
		res.AnswerHTML = RenderHTML(state.Answer)
	}
	c.JSON(http.StatusOK, gin.H{"results": res, "status_code": http.StatusOK})
}

func (s *Server) handleIngestion(c *gin.Context) {
	if s.opts.Ingestor == nil || s.opts.Documents == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Ingestion is not configured"})
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "No file provided"})
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType != pdfContentType {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Only PDF files are allowed."})
		return
	}
	if header.Size > s.opts.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "File is too large"})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.RequestTimeout)
	defer cancel()

	// The loader picks the parser from the extension.
	name := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		name += ".pdf"
	}
	obj, err := s.opts.Documents.Put(ctx, name, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		s.logger.Error("error while saving %s: %v", name, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	result, err := s.opts.Ingestor.Ingest(ctx, name, data)
	if err != nil {
		s.logger.Error("error while ingesting %s: %v", name, err)
		if derr := s.opts.Documents.Delete(context.WithoutCancel(ctx), obj.Key); derr != nil {
			s.logger.Warn("failed to remove %s after ingestion error: %v", obj.Key, derr)
		}
		status := http.StatusInternalServerError
		if errors.Is(err, knowledge.ErrNoContent) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"detail": err.Error()})
		return
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.ObserveIngest(result.Chunks)
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "File uploaded and ingested in vector store successfully.",
		"filename":    name,
		"path":        obj.Location,
		"chunks":      result.Chunks,
		"status_code": http.StatusOK,
	})
}

func (s *Server) handleKBStats(c *gin.Context) {
	if s.opts.Knowledge == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Knowledge base is not configured"})
		return
	}
	stats, err := knowledge.CollectStats(c.Request.Context(), s.opts.Knowledge, 5)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleGraph(c *gin.Context) {
	names := make([]string, 0, len(s.opts.Diagrams))
	for name := range s.opts.Diagrams {
		names = append(names, name)
	}
	sort.Strings(names)

	if c.Query("format") == "text" {
		var sb strings.Builder
		for _, name := range names {
			sb.WriteString("%% " + name + "\n")
			sb.WriteString(s.opts.Diagrams[name])
			sb.WriteString("\n")
		}
		c.String(http.StatusOK, sb.String())
		return
	}
	c.JSON(http.StatusOK, gin.H{"graphs": s.opts.Diagrams, "names": names})
}
