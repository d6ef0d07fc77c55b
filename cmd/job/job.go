package job

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kashguard/go-horde-sdk/internal/app"
	"github.com/kashguard/go-horde-sdk/internal/horde"
	"github.com/kashguard/go-horde-sdk/internal/util"
	"github.com/kashguard/go-horde-sdk/internal/util/command"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	metricsAddrFlag  = "metrics-addr"
	timeoutFlag      = "timeout"
	queueFlag        = "queue"
	artifactsOutFlag = "artifacts-out"
)

func New() *cobra.Command {
	cmd := command.NewSubcommandGroup("job",
		newCreate(),
		newGet(),
		newList(),
		newWait(),
		newFeedback(),
		newResume(),
	)
	cmd.PersistentFlags().String(metricsAddrFlag, "", "Serve client metrics on this address while the command runs")
	return cmd
}

// run loads the config and runs f with an initialized App.
func run(cmd *cobra.Command, f func(ctx context.Context, a *app.App) error) error {
	cfg, err := command.LoadConfig(cmd)
	if err != nil {
		return err
	}

	return command.WithApp(cmd.Context(), cfg, func(ctx context.Context, a *app.App) error {
		if addr, _ := cmd.Flags().GetString(metricsAddrFlag); addr != "" {
			metricsCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			go func() {
				if err := command.ServeMetrics(metricsCtx, addr, a.Registry); err != nil {
					util.LogFromContext(ctx).Error().Err(err).Msg("Metrics server stopped")
				}
			}()
		}

		return f(ctx, a)
	})
}

type jobView struct {
	UUID          string            `json:"uuid"`
	Status        horde.Status      `json:"status"`
	Stdout        string            `json:"stdout,omitempty"`
	Artifacts     []string          `json:"artifacts,omitempty"`
	UploadResults map[string]string `json:"upload_results,omitempty"`
}

// warnVolatileQueue logs when queue is only kept in memory and will not survive the process.
func warnVolatileQueue(ctx context.Context, a *app.App, queue string) {
	if queue == "" || a.Config.RedisAddr != "" {
		return
	}
	util.LogFromContext(ctx).Warn().Str("queue", queue).
		Msg("HORDE_REDIS_ADDR is not set, the job queue is kept in memory and lost when this process exits")
}

func newJobView(j *horde.Job) jobView {
	v := jobView{UUID: j.UUID, Status: j.Status()}
	if res := j.Result(); res != nil {
		v.Stdout = res.Stdout
		v.UploadResults = res.UploadResults
		for path := range res.Artifacts {
			v.Artifacts = append(v.Artifacts, path)
		}
		sort.Strings(v.Artifacts)
	}
	return v
}

func printJobs(w io.Writer, jobs ...*horde.Job) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	for _, j := range jobs {
		if err := enc.Encode(newJobView(j)); err != nil {
			return errors.Wrap(err, "failed to print job")
		}
	}
	return nil
}

// writeArtifacts stores the job's artifacts below dir, keeping their paths.
func writeArtifacts(dir string, j *horde.Job) error {
	res := j.Result()
	if dir == "" || res == nil {
		return nil
	}

	for path, contents := range res.Artifacts {
		rel := strings.TrimPrefix(filepath.Clean(path), string(filepath.Separator))
		if !filepath.IsLocal(rel) {
			return errors.Errorf("refusing to write artifact %q outside of %s", path, dir)
		}

		target := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errors.Wrapf(err, "failed to create directory for artifact %q", path)
		}
		if err := os.WriteFile(target, contents, 0o644); err != nil {
			return errors.Wrapf(err, "failed to write artifact %q", path)
		}
	}
	return nil
}

// finish waits for j, forgets it in the job store and prints it.
func finish(ctx context.Context, cmd *cobra.Command, a *app.App, queue string, j *horde.Job) error {
	timeout, err := cmd.Flags().GetDuration(timeoutFlag)
	if err != nil {
		return err
	}

	if err := j.Wait(ctx, timeout); err != nil {
		return err
	}

	if queue != "" {
		if err := a.Store.Remove(ctx, queue, j.UUID); err != nil {
			util.LogFromContext(ctx).Warn().Err(err).Str("job_uuid", j.UUID).Msg("Failed to remove job from store")
		}
	}

	outDir, err := cmd.Flags().GetString(artifactsOutFlag)
	if err != nil {
		return err
	}
	if err := writeArtifacts(outDir, j); err != nil {
		return err
	}

	if err := printJobs(cmd.OutOrStdout(), j); err != nil {
		return err
	}

	if j.Status().IsFailed() {
		return errors.Errorf("job %s finished with status %s", j.UUID, j.Status())
	}
	return nil
}

func addWaitFlags(cmd *cobra.Command) {
	cmd.Flags().Duration(timeoutFlag, 0, "Give up waiting after this long, 0 waits forever")
	cmd.Flags().String(artifactsOutFlag, "", "Write the job's artifacts below this directory")
}
