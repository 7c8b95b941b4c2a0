package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// InfoResponse describes the API at GET /.
type InfoResponse struct {
	Message   string            `json:"message"`
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Features  []string          `json:"features"`
	Endpoints map[string]string `json:"endpoints"`
}

// Info handles GET /.
func Info(version string) gin.HandlerFunc {
	resp := InfoResponse{
		Message: "MedSimplify Lab Report Simplification API",
		Status:  "running",
		Version: version,
		Features: []string{
			"Plain-text, TXT and text-layer PDF input",
			"Knowledge base of common laboratory tests",
			"Risk-level status indicators",
			"Categorized test results",
			"Personalized recommendations",
		},
		Endpoints: map[string]string{
			"/api/simplify":      "POST - Upload a lab report file (multipart field \"file\")",
			"/api/simplify-text": "POST - Simplify lab report text",
			"/api/kb/tests":      "GET - List known tests",
			"/api/health":        "GET - API health check",
		},
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, resp)
	}
}
