package agent

import (
	"strings"

	"github.com/claude/repsync/internal/models"
)

// Classify maps a request path to its resource class by path prefix
// convention: /api/ endpoints are API-class (network-first), everything
// else (bundled assets, manifests, navigations) is static (cache-first).
func Classify(path string) models.ResourceClass {
	if strings.HasPrefix(path, "/api/") {
		return models.ClassAPI
	}
	return models.ClassStatic
}
