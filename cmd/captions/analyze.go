package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"caption-backend/internal/intake"
	"caption-backend/internal/llm"
	"caption-backend/internal/llm/gemini"
	"caption-backend/internal/preview"
	"caption-backend/internal/shared/config"
	localstore "caption-backend/internal/shared/storage/object/local"
	"caption-backend/internal/videos"
)

const cliNamespace = "cli"

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <video>...",
		Short: "Analyze up to 10 clips one at a time and write the results",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAnalyze,
	}
	cmd.Flags().Int("max-length", 0, "Preferred maximum caption length (0 for none)")
	cmd.Flags().String("api-key", "", "Gemini API key (defaults to GEMINI_API_KEY)")
	cmd.Flags().String("model", "", "Gemini model (defaults to LLM_MODEL)")
	addReportFlags(cmd)
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	maxLength, _ := cmd.Flags().GetInt("max-length")
	apiKey, _ := cmd.Flags().GetString("api-key")
	model, _ := cmd.Flags().GetString("model")
	opts, err := reportFlags(cmd)
	if err != nil {
		return err
	}
	if apiKey == "" {
		apiKey = cfg.GeminiAPIKey
	}
	if model == "" {
		model = cfg.LLMModel
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scratch, err := os.MkdirTemp("", "captions-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)
	store := localstore.New(scratch)

	candidates, closeAll, err := openVideos(args)
	defer closeAll()
	if err != nil {
		return err
	}

	admitter := &intake.Admitter{Store: store, Previews: preview.NewRegistry("")}
	batch, err := admitter.Admit(ctx, cliNamespace, 0, candidates)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if batch.Warning != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), batch.Warning)
	}
	if len(batch.Items) == 0 {
		return fmt.Errorf("no videos to analyze")
	}

	var client llm.Client = llm.PlaceholderClient{}
	if cfg.LLMProvider == "gemini" {
		client, err = gemini.NewClient(ctx, gemini.Options{
			APIKey:  apiKey,
			BaseURL: cfg.GeminiBaseURL,
			Model:   model,
			Timeout: cfg.GeminiTimeout,
			UseADC:  cfg.GeminiUseADC,
		})
		if err != nil {
			return err
		}
	}

	analyzer := &videos.LLMAnalyzer{Store: store, LLM: client}
	engine := videos.NewEngine(cliNamespace, videos.Config{
		Source:    analyzer,
		Analyzer:  analyzer,
		Releaser:  admitter,
		Observers: []videos.Observer{progressObserver(cmd.ErrOrStderr())},
		Timeout:   cfg.AnalysisTimeout,
	})
	defer func() { _ = engine.Close(context.Background()) }()

	if maxLength > 0 {
		if err := engine.SetCaptionLength(&maxLength); err != nil {
			return err
		}
	}
	if err := engine.Enqueue(batch.Items...); err != nil {
		return err
	}
	if err := engine.WaitIdle(ctx); err != nil {
		return err
	}

	items := engine.Snapshot().Items
	fmt.Fprintf(out, "%d analyzed, %d failed\n", countStatus(items, videos.StatusComplete), countStatus(items, videos.StatusError))
	return writeReports(out, items, opts)
}

func openVideos(paths []string) ([]intake.Candidate, func(), error) {
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	candidates := make([]intake.Candidate, 0, len(paths))
	for _, path := range paths {
		mtype, err := mimetype.DetectFile(path)
		if err != nil {
			return nil, closeAll, fmt.Errorf("detect %s: %w", path, err)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, closeAll, err
		}
		files = append(files, f)
		info, err := f.Stat()
		if err != nil {
			return nil, closeAll, err
		}
		candidates = append(candidates, intake.Candidate{
			FileName:    filepath.Base(path),
			ContentType: mtype.String(),
			SizeBytes:   info.Size(),
			Body:        f,
		})
	}
	return candidates, closeAll, nil
}

func progressObserver(w io.Writer) videos.Observer {
	return videos.ObserverFunc(func(_ context.Context, t videos.Transition) {
		switch {
		case t.Discarded:
			return
		case t.To == videos.StatusAnalyzing:
			fmt.Fprintf(w, "analyzing %s (%s)\n", t.Item.FileName, humanize.IBytes(uint64(t.Item.SizeBytes)))
		case t.To == videos.StatusComplete:
			fmt.Fprintf(w, "done %s in %s\n", t.Item.FileName, t.Duration.Round(100*time.Millisecond))
		case t.To == videos.StatusError:
			fmt.Fprintf(w, "failed %s: %s (%s)\n", t.Item.FileName, videos.FailureReason, t.FailureCode)
		}
	})
}

func countStatus(items []videos.Item, status videos.Status) int {
	n := 0
	for _, it := range items {
		if it.Status == status {
			n++
		}
	}
	return n
}
