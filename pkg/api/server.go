// Package api provides the REST API server for midimotif
package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/james-see/midimotif/pkg/codec"
	"github.com/james-see/midimotif/pkg/midifile"
	"github.com/james-see/midimotif/pkg/model"
)

// @title MidiMotif API
// @version 1.0
// @description API for motif-compressing MIDI files and expanding them back
// @host localhost:8080
// @BasePath /api/v1

// StartServer starts the API server on the specified port
func StartServer(port int) error {
	r := gin.Default()

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.POST("/encode", handleEncode)
		v1.POST("/decode", handleDecode)
		v1.GET("/info", serviceInfo)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r.Run(fmt.Sprintf(":%d", port))
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "midimotif",
	})
}

// serviceInfo godoc
// @Summary Describe the codec configuration surface
// @Description Returns supported transformations and default thresholds
// @Tags info
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/info [get]
func serviceInfo(c *gin.Context) {
	opts := model.DefaultOptions()
	c.JSON(http.StatusOK, gin.H{
		"transformations": []string{"exact", "retrograde", "inversion", "retrograde-inversion"},
		"defaults": gin.H{
			"minMotifLength":      opts.MinMotifLength,
			"maxMotifLength":      opts.MaxMotifLength,
			"similarityThreshold": opts.SimilarityThreshold,
			"minConfidence":       opts.MinConfidence,
			"minOccurrences":      opts.MinOccurrences,
		},
	})
}

// optionsFromQuery resolves request query flags into codec options
func optionsFromQuery(c *gin.Context) model.Options {
	opts := model.DefaultOptions()
	if strings.EqualFold(c.Query("motifs"), "false") {
		opts.NoMotifs = true
	}
	if strings.EqualFold(c.Query("dilation"), "false") {
		opts.AllowDilation = false
	}
	return opts
}

// handleEncode godoc
// @Summary Compress a MIDI file
// @Description Upload a MIDI file and receive a motif-compressed JSON document
// @Tags codec
// @Accept multipart/form-data
// @Produce application/json
// @Param file formData file true "MIDI file to compress"
// @Param motifs query string false "Set to false for literal-only output"
// @Param dilation query string false "Set to false to disable tempo dilation search"
// @Success 200 {object} codec.Document
// @Failure 400 {object} map[string]string
// @Router /api/v1/encode [post]
func handleEncode(c *gin.Context) {
	data, _, ok := readUpload(c)
	if !ok {
		return
	}

	piece, err := midifile.Read(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, err := codec.Encode(piece, optionsFromQuery(c))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, doc)
}

// handleDecode godoc
// @Summary Expand a compressed document
// @Description Upload a compressed JSON document and receive the reconstructed MIDI file
// @Tags codec
// @Accept multipart/form-data
// @Produce audio/midi
// @Param file formData file true "Compressed document to expand"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/decode [post]
func handleDecode(c *gin.Context) {
	data, filename, ok := readUpload(c)
	if !ok {
		return
	}

	doc, err := codec.ParseDocument(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	piece, err := codec.Decode(doc)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	out, err := midifile.Write(piece)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	outputName := "decoded.mid"
	if dot := strings.LastIndex(filename, "."); dot > 0 {
		outputName = filename[:dot] + ".mid"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", outputName))
	c.Data(http.StatusOK, "audio/midi", out)
}

func readUpload(c *gin.Context) ([]byte, string, bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return nil, "", false
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return nil, "", false
	}
	return data, header.Filename, true
}
