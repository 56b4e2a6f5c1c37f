package helper

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
)

// DefaultModelDir is where downloaded embedding models are cached
const DefaultModelDir = "./models"

// ModelPath returns the local cache path of a Hugging Face model name
func ModelPath(modelDir, modelName string) string {
	return filepath.Join(modelDir, strings.ReplaceAll(modelName, "/", "_"))
}

// PrepareModel downloads the model into modelDir if it is not cached yet
// and returns the model path. onnxFile selects the onnx file inside the repo.
func PrepareModel(modelDir, modelName, onnxFile string) (string, error) {
	if modelDir == "" {
		modelDir = DefaultModelDir
	}
	modelPath := ModelPath(modelDir, modelName)

	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat model directory: %w", err)
	}

	if err := os.MkdirAll(modelDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}
	downloadOptions := hugot.NewDownloadOptions()
	if onnxFile != "" {
		downloadOptions.OnnxFilePath = onnxFile
	}
	downloadedPath, err := hugot.DownloadModel(modelName, modelDir, downloadOptions)
	if err != nil {
		return "", fmt.Errorf("failed to download model: %w", err)
	}

	return downloadedPath, nil
}
