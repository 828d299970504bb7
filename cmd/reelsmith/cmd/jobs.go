package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/reelsmith/reelsmith/internal/config"
	"github.com/reelsmith/reelsmith/internal/jobs"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage background selection jobs",
	Long: `Jobs persist long clip-selection runs in a local SQLite store so
they can be resumed, inspected, and cancelled across invocations.

Submit queues a job; run executes it in the foreground (Ctrl-C cancels
at the next batch boundary, keeping the progress already made).`,
}

var jobsSubmitCmd = &cobra.Command{
	Use:   "submit [flags] CLIP...",
	Short: "Queue a selection job",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runJobsSubmit,
}

var jobsRunCmd = &cobra.Command{
	Use:   "run JOB_ID",
	Short: "Execute a pending job in the foreground",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsRun,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all jobs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runJobsList,
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status JOB_ID",
	Short: "Print one job as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsStatus,
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel JOB_ID",
	Short: "Cancel a pending or running job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsCancel,
}

var jobsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete terminal jobs older than the retention window",
	Args:  cobra.NoArgs,
	RunE:  runJobsCleanup,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsSubmitCmd, jobsRunCmd, jobsListCmd, jobsStatusCmd, jobsCancelCmd, jobsCleanupCmd)

	jobsSubmitCmd.Flags().String("style", "", "narrative style hint")
	jobsSubmitCmd.Flags().String("preset", "", "style preset (traditional, modern, intimate, destination)")
	jobsSubmitCmd.Flags().Float64("target", 0, "target duration in seconds (0 = 3s per clip)")
}

// openRegistry opens the job store and registry for one command. The
// returned close function must be deferred.
func openRegistry(cfg *config.Config, analyzer jobs.ClipAnalyzer) (*jobs.Registry, func(), error) {
	db, err := jobs.Open(cfg.Storage.JobsDB, nil)
	if err != nil {
		return nil, nil, err
	}
	// Management commands sweep on their own; no cron inside one-shot runs.
	regCfg := cfg.Jobs
	regCfg.CleanupCron = ""
	reg, err := jobs.NewRegistry(db, analyzer, regCfg, nil)
	if err != nil {
		_ = jobs.Close(db)
		return nil, nil, err
	}
	return reg, func() {
		reg.Close()
		_ = jobs.Close(db)
	}, nil
}

func runJobsSubmit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	reg, closeReg, err := openRegistry(cfg, nil)
	if err != nil {
		return err
	}
	defer closeReg()

	style, _ := cmd.Flags().GetString("style")
	preset, _ := cmd.Flags().GetString("preset")
	target, _ := cmd.Flags().GetFloat64("target")

	job, err := reg.Create(jobs.Request{
		Clips:         args,
		Style:         style,
		Preset:        preset,
		TargetSeconds: target,
	})
	if err != nil {
		return err
	}
	fmt.Println(job.ID)
	return nil
}

func runJobsRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, prober, err := buildToolchain(ctx, cfg)
	if err != nil {
		return err
	}
	analyzer := buildSelector(cfg, runner, prober, cfg.Selector.JobBatchSize)

	reg, closeReg, err := openRegistry(cfg, analyzer)
	if err != nil {
		return err
	}
	defer closeReg()

	id := args[0]
	reg.Run(ctx, id)

	job, err := reg.Get(id)
	if err != nil {
		return err
	}
	if job.State != jobs.StateCompleted {
		return fmt.Errorf("job %s finished %s: %s", id, job.State, job.Error)
	}
	fmt.Println(job.Result)
	return nil
}

func runJobsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	reg, closeReg, err := openRegistry(cfg, nil)
	if err != nil {
		return err
	}
	defer closeReg()

	list, err := reg.List()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tPROGRESS\tSTEP\tCREATED")
	for _, job := range list {
		fmt.Fprintf(w, "%s\t%s\t%.0f%%\t%s\t%s\n",
			job.ID, job.State, job.Progress*100, job.CurrentStep,
			job.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	reg, closeReg, err := openRegistry(cfg, nil)
	if err != nil {
		return err
	}
	defer closeReg()

	job, err := reg.Get(args[0])
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing job: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func runJobsCancel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	reg, closeReg, err := openRegistry(cfg, nil)
	if err != nil {
		return err
	}
	defer closeReg()

	return reg.Cancel(args[0])
}

func runJobsCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	reg, closeReg, err := openRegistry(cfg, nil)
	if err != nil {
		return err
	}
	defer closeReg()

	removed, err := reg.Cleanup(cfg.Jobs.Retention)
	if err != nil {
		return err
	}
	fmt.Printf("removed %d jobs\n", removed)
	return nil
}
