package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/MichaelB312/storybook/internal/api"
	"github.com/MichaelB312/storybook/internal/svcctx"
)

// ClearJobsEndpoint handles DELETE /api/jobs.
// It wipes every job record, anchor future, and cached character
// reference so a new book starts from scratch.
type ClearJobsEndpoint struct{}

func (e *ClearJobsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/jobs", e.handler
}

func (e *ClearJobsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Clear all jobs
//	@Description	Remove every job record, anchor, and cached reference
//	@Tags			jobs
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/jobs [delete]
func (e *ClearJobsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	p := svcctx.PipelineFrom(r.Context())
	if p == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not initialized")
		return
	}

	p.ClearAll()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (e *ClearJobsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear all jobs and cached book state",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/jobs"); err != nil {
				return err
			}
			fmt.Println("All jobs cleared")
			return nil
		},
	}
}
