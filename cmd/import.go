package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brightline/composer/internal/keywords"
	"github.com/brightline/composer/internal/model"
	"github.com/brightline/composer/internal/pools"
)

var (
	importOrg         string
	importProject     string
	importPoolType    string
	importGroup       string
	importConcurrency int
)

var importCmd = &cobra.Command{
	Use:   "import [files...]",
	Short: "Bulk upload keyword files (CSV or XLSX) into a pool",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("import"); err != nil {
			return err
		}
		if importProject == "" {
			return eris.New("--project is required")
		}
		poolType := model.PoolType(importPoolType)
		if !poolType.Valid() {
			return eris.Errorf("unknown pool type %q", importPoolType)
		}
		org := importOrg
		if org == "" {
			org = cfg.Defaults.OrganizationID
		}
		var groupID *string
		if importGroup != "" {
			groupID = &importGroup
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()
		svc := pools.NewService(st)

		// Parse concurrently; uploads into one pool serialize on a merge
		// anyway, so parsing is where the parallelism pays off.
		parsed := make([][]string, len(args))
		var g errgroup.Group
		g.SetLimit(importConcurrency)
		for i, path := range args {
			g.Go(func() error {
				kws, err := parseKeywordFile(path)
				if err != nil {
					return eris.Wrapf(err, "parse %s", path)
				}
				parsed[i] = kws
				zap.L().Info("parsed keyword file", zap.String("file", path), zap.Int("keywords", len(kws)))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		total := 0
		for i, kws := range parsed {
			res, err := svc.Upload(cmd.Context(), pools.UploadRequest{
				OrganizationID: org,
				ProjectID:      importProject,
				PoolType:       poolType,
				GroupID:        groupID,
				Keywords:       kws,
			})
			if err != nil {
				return eris.Wrapf(err, "upload %s", args[i])
			}
			total = len(res.Pool.RawKeywords)
			if res.Validation.Warning != "" {
				zap.L().Warn("pool below recommended size", zap.String("detail", res.Validation.Warning))
			}
		}

		zap.L().Info("import complete",
			zap.Int("files", len(args)),
			zap.Int("poolSize", total))
		return nil
	},
}

func parseKeywordFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read file")
	}
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return keywords.ParseXLSXFile(data)
	}
	return keywords.ParseCSVFile(data)
}

func init() {
	importCmd.Flags().StringVar(&importOrg, "org", "", "organization ID (default from config)")
	importCmd.Flags().StringVar(&importProject, "project", "", "project ID (required)")
	importCmd.Flags().StringVar(&importPoolType, "pool-type", "body", "pool type: body or titles")
	importCmd.Flags().StringVar(&importGroup, "group", "", "optional sub-group scope")
	importCmd.Flags().IntVar(&importConcurrency, "concurrency", 4, "max files parsed in parallel")
	rootCmd.AddCommand(importCmd)
}
