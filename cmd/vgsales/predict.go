package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vgsales/corpus"
	"vgsales/encoder"
	"vgsales/pipeline"
)

type predictFlags struct {
	name      string
	platform  string
	genre     string
	publisher string
	year      int
	stdin     bool
	autoTrain bool
	watch     bool
	asJSON    bool
}

func newPredictCmd(a *app) *cobra.Command {
	f := &predictFlags{}
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Estimate global sales for one game with both models",
		Example: `  vgsales predict --name "Super Mario Bros."
  vgsales predict --platform NES --genre Platform --publisher Nintendo --year 1985
  cat games.jsonl | vgsales predict --stdin`,
		RunE: a.run(true, func(cmd *cobra.Command, _ []string) error {
			return a.predict(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), f)
		}),
	}
	cmd.Flags().StringVar(&f.name, "name", "", "look the game up in the catalog by name")
	cmd.Flags().StringVar(&f.platform, "platform", "", "platform, e.g. NES")
	cmd.Flags().StringVar(&f.genre, "genre", "", "genre, e.g. Platform")
	cmd.Flags().StringVar(&f.publisher, "publisher", "", "publisher, e.g. Nintendo")
	cmd.Flags().IntVar(&f.year, "year", 0, "release year")
	cmd.Flags().BoolVar(&f.stdin, "stdin", false, "read one JSON object per line from stdin")
	cmd.Flags().BoolVar(&f.autoTrain, "auto-train", false, "train first when no bundle is published")
	cmd.Flags().BoolVar(&f.watch, "watch", false, "with --stdin, reload when a new bundle is published")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print predictions as JSON")
	cmd.MarkFlagsMutuallyExclusive("name", "stdin")
	return cmd
}

func (a *app) predict(ctx context.Context, in io.Reader, out io.Writer, f *predictFlags) error {
	holder := pipeline.NewHolder(a.cfg.Artifacts.Dir, a.logger.Named("holder"), a.metrics)
	if err := holder.Load(); err != nil {
		if !f.autoTrain {
			return fmt.Errorf("%w: run `vgsales train` first (%v)", pipeline.ErrModelsUnavailable, err)
		}
		a.logger.Info("no bundle published, training first")
		if _, err := a.train(ctx); err != nil {
			return err
		}
		if err := holder.Load(); err != nil {
			return err
		}
	}

	if f.stdin {
		if f.watch {
			watchCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() {
				if err := holder.Watch(watchCtx, 0); err != nil {
					a.logger.Warn("bundle watch stopped", zap.Error(err))
				}
			}()
		}
		return predictStream(holder, in, out)
	}

	rec, err := a.recordFromFlags(ctx, f)
	if err != nil {
		return err
	}
	p, err := holder.Predict(rec)
	if err != nil {
		return explain(holder, err)
	}
	if f.asJSON {
		return json.NewEncoder(out).Encode(p)
	}
	printPrediction(out, p)
	return nil
}

func (a *app) recordFromFlags(ctx context.Context, f *predictFlags) (corpus.Record, error) {
	if f.name != "" {
		catalog, closeFn, err := a.openCatalog(ctx)
		if err != nil {
			return corpus.Record{}, err
		}
		defer closeFn()
		return catalog.Lookup(ctx, f.name)
	}
	rec := corpus.Record{Platform: f.platform, Genre: f.genre, Publisher: f.publisher, Year: f.year}
	return rec, rec.Validate()
}

// predictStream answers one JSON line at a time. Bad lines produce an error
// object and do not stop the stream.
func predictStream(holder *pipeline.Holder, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	enc := json.NewEncoder(out)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var result any
		rec, err := decodeRecord([]byte(line))
		if err == nil {
			var p *pipeline.Prediction
			if p, err = holder.Predict(rec); err == nil {
				result = p
			}
		}
		if err != nil {
			result = map[string]string{"error": err.Error()}
		}
		if err := enc.Encode(result); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func decodeRecord(line []byte) (corpus.Record, error) {
	var raw map[string]any
	if err := json.Unmarshal(line, &raw); err != nil {
		return corpus.Record{}, &corpus.MalformedRecordError{Field: "line", Reason: err.Error()}
	}
	field := func(keys ...string) any {
		for _, k := range keys {
			if v, ok := raw[k]; ok {
				return v
			}
		}
		return nil
	}
	year, err := corpus.ParseYear(cast.ToString(field("year", "Year")))
	if err != nil {
		return corpus.Record{}, err
	}
	rec := corpus.Record{
		Name:        cast.ToString(field("name", "Name")),
		Platform:    cast.ToString(field("platform", "Platform")),
		Genre:       cast.ToString(field("genre", "Genre")),
		Publisher:   cast.ToString(field("publisher", "Publisher")),
		Year:        year,
		GlobalSales: cast.ToFloat64(field("global_sales", "Global_Sales")),
	}
	return rec, rec.Validate()
}

// explain adds the known values to an unknown-category error.
func explain(holder *pipeline.Holder, err error) error {
	var unknown *encoder.UnknownCategoryError
	if !errors.As(err, &unknown) {
		return err
	}
	pctx, cerr := holder.Context()
	if cerr != nil {
		return err
	}
	set := pctx.Bundle().Encoders
	var known []string
	switch unknown.Feature {
	case encoder.FeaturePlatform:
		known = set.Platform.Classes()
	case encoder.FeatureGenre:
		known = set.Genre.Classes()
	case encoder.FeaturePublisher:
		known = set.Publisher.Classes()
	}
	if len(known) > 20 {
		known = append(known[:20], fmt.Sprintf("... %d more", len(known)-20))
	}
	return fmt.Errorf("%w\nknown %s values: %s", err, strings.ToLower(unknown.Feature), strings.Join(known, ", "))
}

func printPrediction(w io.Writer, p *pipeline.Prediction) {
	if p.Name != "" {
		fmt.Fprintf(w, "%s\n", p.Name)
	}
	fmt.Fprintf(w, "  platform:  %s\n", p.Platform)
	fmt.Fprintf(w, "  genre:     %s\n", p.Genre)
	fmt.Fprintf(w, "  publisher: %s\n", p.Publisher)
	fmt.Fprintf(w, "  year:      %d\n", p.Year)
	if p.Name != "" {
		fmt.Fprintf(w, "  actual global sales:      %.2fM\n", p.ActualSales)
	}
	fmt.Fprintf(w, "  linear regression:        %.2fM\n", p.LinearEstimate)
	fmt.Fprintf(w, "  random forest:            %.2fM\n", p.ForestEstimate)
}
