package job

import (
	"context"
	"strings"

	"github.com/kashguard/go-horde-sdk/internal/app"
	"github.com/kashguard/go-horde-sdk/internal/horde"
	"github.com/kashguard/go-horde-sdk/internal/util"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	imageFlag         = "image"
	executorClassFlag = "executor-class"
	namespaceFlag     = "namespace"
	envFlag           = "env"
	artifactsDirFlag  = "artifacts-dir"
	noGPUFlag         = "no-gpu"
	inlineFlag        = "inline"
	httpInputFlag     = "http-input"
	huggingfaceFlag   = "huggingface"
	uploadFlag        = "upload"
	waitFlag          = "wait"
)

func newCreate() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [flags] -- [args...]",
		Short: "Signs and submits a docker job",
		Long: `Signs and submits a docker job to the facilitator.

Input volumes are given as MOUNT=SOURCE, where MOUNT lies below /volume/.
Uploads are given as MOUNT=URL, where MOUNT is a file below /output/.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := specFromFlags(cmd, args)
			if err != nil {
				return err
			}

			return run(cmd, func(ctx context.Context, a *app.App) error {
				return createCmdFunc(ctx, cmd, a, spec)
			})
		},
	}

	cmd.Flags().String(imageFlag, "", "Docker image to run")
	cmd.Flags().String(executorClassFlag, string(horde.DefaultExecutorClass), "Executor class to run on")
	cmd.Flags().String(namespaceFlag, "", "Job namespace, e.g. SN123.0")
	cmd.Flags().StringToString(envFlag, nil, "Environment variables as KEY=VALUE")
	cmd.Flags().String(artifactsDirFlag, "", "Absolute directory in the container whose files are returned")
	cmd.Flags().Bool(noGPUFlag, false, "Run without a GPU")
	cmd.Flags().StringArray(inlineFlag, nil, "Local file or directory to send with the job, as MOUNT=PATH")
	cmd.Flags().StringArray(httpInputFlag, nil, "File to download before the job starts, as MOUNT=URL")
	cmd.Flags().StringArray(huggingfaceFlag, nil, "Hugging Face repository to download, as MOUNT=REPO_ID")
	cmd.Flags().StringArray(uploadFlag, nil, "Output file to upload with PUT, as MOUNT=URL")
	cmd.Flags().Bool(waitFlag, false, "Wait for the job to finish")
	cmd.Flags().String(queueFlag, "", "Remember the job under this queue until it finished, defaults to HORDE_JOB_QUEUE")
	addWaitFlags(cmd)

	if err := cmd.MarkFlagRequired(imageFlag); err != nil {
		panic(err)
	}

	return cmd
}

func splitMount(flag, value string) (string, string, error) {
	mount, source, ok := strings.Cut(value, "=")
	if !ok || mount == "" || source == "" {
		return "", "", errors.Errorf("--%s expects MOUNT=SOURCE, got %q", flag, value)
	}
	return mount, source, nil
}

func specFromFlags(cmd *cobra.Command, args []string) (*horde.JobSpec, error) {
	flags := cmd.Flags()

	image, _ := flags.GetString(imageFlag)
	executorClass, _ := flags.GetString(executorClassFlag)
	namespace, _ := flags.GetString(namespaceFlag)
	env, _ := flags.GetStringToString(envFlag)
	artifactsDir, _ := flags.GetString(artifactsDirFlag)
	noGPU, _ := flags.GetBool(noGPUFlag)

	useGPU := !noGPU
	spec := &horde.JobSpec{
		ExecutorClass: horde.ExecutorClass(executorClass),
		JobNamespace:  namespace,
		DockerImage:   image,
		Args:          args,
		Env:           env,
		ArtifactsDir:  artifactsDir,
		InputVolumes:  map[string]horde.InputVolume{},
		OutputVolumes: map[string]horde.OutputVolume{},
		UseGPU:        &useGPU,
	}

	inline, _ := flags.GetStringArray(inlineFlag)
	for _, value := range inline {
		mount, path, err := splitMount(inlineFlag, value)
		if err != nil {
			return nil, err
		}
		vol, err := horde.NewInlineInputVolumeFromPath(path)
		if err != nil {
			return nil, err
		}
		spec.InputVolumes[mount] = vol
	}

	httpInputs, _ := flags.GetStringArray(httpInputFlag)
	for _, value := range httpInputs {
		mount, url, err := splitMount(httpInputFlag, value)
		if err != nil {
			return nil, err
		}
		spec.InputVolumes[mount] = horde.HTTPInputVolume{URL: url}
	}

	repos, _ := flags.GetStringArray(huggingfaceFlag)
	for _, value := range repos {
		mount, repoID, err := splitMount(huggingfaceFlag, value)
		if err != nil {
			return nil, err
		}
		spec.InputVolumes[mount] = horde.HuggingfaceInputVolume{RepoID: repoID}
	}

	uploads, _ := flags.GetStringArray(uploadFlag)
	for _, value := range uploads {
		mount, url, err := splitMount(uploadFlag, value)
		if err != nil {
			return nil, err
		}
		spec.OutputVolumes[mount] = horde.HTTPOutputVolume{HTTPMethod: "PUT", URL: url}
	}

	return spec, nil
}

func createCmdFunc(ctx context.Context, cmd *cobra.Command, a *app.App, spec *horde.JobSpec) error {
	log := util.LogFromContext(ctx)

	queue, _ := cmd.Flags().GetString(queueFlag)
	if queue == "" {
		queue = a.Config.JobQueue
	}
	warnVolatileQueue(ctx, a, queue)

	j, err := a.Client.CreateJob(ctx, spec)
	if err != nil {
		return err
	}
	log.Info().Str("job_uuid", j.UUID).Str("status", j.Status().String()).Msg("Job created")

	if queue != "" {
		if err := a.Store.Add(ctx, queue, j.UUID); err != nil {
			log.Warn().Err(err).Str("queue", queue).Msg("Failed to remember job")
		}
	}

	if wait, _ := cmd.Flags().GetBool(waitFlag); !wait {
		return printJobs(cmd.OutOrStdout(), j)
	}

	return finish(ctx, cmd, a, queue, j)
}
