package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/cobra"

	"github.com/MichaelB312/storybook/internal/api"
	"github.com/MichaelB312/storybook/internal/story"
	"github.com/MichaelB312/storybook/internal/svcctx"
)

// CreateJobRequest is the request body for creating a generation job.
type CreateJobRequest struct {
	BookID  string            `json:"book_id"`
	Request story.PageRequest `json:"request"`
}

// CreateJobResponse is the response for creating a generation job.
type CreateJobResponse struct {
	ID string `json:"id"`
}

// createJobSchema validates the request shape before it reaches the
// pipeline. Deeper validation (photo-or-description, page semantics)
// belongs to the pipeline itself.
const createJobSchema = `{
	"type": "object",
	"required": ["book_id", "request"],
	"properties": {
		"book_id": {"type": "string", "minLength": 1},
		"request": {
			"type": "object",
			"required": ["page", "characters"],
			"properties": {
				"page": {"type": "integer", "minimum": 0},
				"narration": {"type": "string"},
				"action": {"type": "string"},
				"camera": {"type": "string"},
				"setting": {"type": "string"},
				"characters": {
					"type": "array",
					"minItems": 1,
					"items": {
						"type": "object",
						"required": ["id", "name"],
						"properties": {
							"id": {"type": "string", "minLength": 1},
							"name": {"type": "string", "minLength": 1},
							"role": {"enum": ["main", "supporting"]},
							"description": {"type": "string"},
							"photo_png": {"type": "string"}
						}
					}
				}
			}
		}
	}
}`

var createJobValidator = mustCompileSchema("create_job.json", createJobSchema)

func mustCompileSchema(name, src string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
		panic(err)
	}
	return compiler.MustCompile(name)
}

// CreateJobEndpoint handles POST /api/jobs.
type CreateJobEndpoint struct{}

func (e *CreateJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/jobs", e.handler
}

func (e *CreateJobEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Create a generation job
//	@Description	Queue an anchor or page generation job and return its ID immediately
//	@Tags			jobs
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateJobRequest	true	"Job creation request"
//	@Success		202		{object}	CreateJobResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/jobs [post]
func (e *CreateJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var raw any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := createJobValidator.Validate(raw); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	data, err := json.Marshal(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var req CreateJobRequest
	if err := json.Unmarshal(data, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p := svcctx.PipelineFrom(r.Context())
	if p == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not initialized")
		return
	}

	id := p.CreateJob(req.BookID, req.Request)
	writeJSON(w, http.StatusAccepted, CreateJobResponse{ID: id})
}

func (e *CreateJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		bookID  string
		reqFile string
		wait    bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Queue a page generation job",
		Long: `Queue a generation job from a page request JSON file.

The request file holds one page request: page number, narration, action,
setting, and character references. Page 0 is the book's character anchor.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bookID == "" {
				return fmt.Errorf("--book is required")
			}
			if reqFile == "" {
				return fmt.Errorf("--request is required")
			}

			data, err := os.ReadFile(reqFile)
			if err != nil {
				return fmt.Errorf("failed to read request file: %w", err)
			}
			var pageReq story.PageRequest
			if err := json.Unmarshal(data, &pageReq); err != nil {
				return fmt.Errorf("failed to parse request file: %w", err)
			}

			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp CreateJobResponse
			body := CreateJobRequest{BookID: bookID, Request: pageReq}
			if err := client.Post(ctx, "/api/jobs", body, &resp); err != nil {
				return err
			}

			if !wait {
				return api.Output(resp)
			}

			rec, err := api.NewPoller(client).PollJob(ctx, resp.ID)
			if err != nil {
				return err
			}
			return api.Output(rec)
		},
	}
	cmd.Flags().StringVar(&bookID, "book", "", "Book ID (required)")
	cmd.Flags().StringVar(&reqFile, "request", "", "Path to page request JSON file (required)")
	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the job reaches a terminal state")
	return cmd
}
