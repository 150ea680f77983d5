package sequencer

import (
	"net/http"
	"time"

	"github.com/JakeFAU/flowfact-console/internal/config"
)

// Operation is one named remote call in the fixed sequence.
type Operation struct {
	Name   string
	Title  string
	Method string
	Path   string
	// Timeout bounds the call; zero means no deadline.
	Timeout        time.Duration
	SendCredential bool
	// SuccessMessage is shown on HTTP 200.
	SuccessMessage string
	// Action completes "Failed to <Action>. Status code: N".
	Action string
}

type operationDef struct {
	title, method, path, success, action string
}

var catalog = map[string]operationDef{
	config.OpFetchData: {
		title:   "Fetch Real Estate Data",
		method:  http.MethodGet,
		path:    "/fetch-data/",
		success: "Data fetched successfully!",
		action:  "fetch data",
	},
	config.OpValidateImages: {
		title:   "Validate Images",
		method:  http.MethodPost,
		path:    "/validate-images/",
		success: "Image validation completed!",
		action:  "validate images",
	},
	config.OpPrepareDataset: {
		title:   "Prepare Dataset",
		method:  http.MethodPost,
		path:    "/prepare-dataset/",
		success: "Dataset preparation completed!",
		action:  "prepare dataset",
	},
	config.OpStartBatchProcessing: {
		title:   "Start Batch Processing",
		method:  http.MethodPost,
		path:    "/start-batch-processing/",
		success: "Batch processing started!",
		action:  "start batch processing",
	},
}

// Catalog returns the operations in execution order with timeouts and
// credential placement taken from cfg.
func Catalog(cfg map[string]config.OperationConfig) []Operation {
	ops := make([]Operation, 0, len(config.OperationOrder))
	for _, name := range config.OperationOrder {
		def := catalog[name]
		tuning := cfg[name]
		ops = append(ops, Operation{
			Name:           name,
			Title:          def.title,
			Method:         def.method,
			Path:           def.path,
			Timeout:        tuning.Timeout,
			SendCredential: tuning.SendCredential,
			SuccessMessage: def.success,
			Action:         def.action,
		})
	}
	return ops
}
