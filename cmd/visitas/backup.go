package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"visitas/internal/blob"
	"visitas/internal/models"
	"visitas/internal/repository"
)

func backupCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or import a community archive",
	}
	cmd.AddCommand(exportCmd(configPath), importCmd(configPath))
	return cmd
}

func exportCmd(configPath *string) *cobra.Command {
	var output, as string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the community of --as to a file or s3://bucket/key",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if output == "" {
				output = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
			}
			return runExport(cmd.Context(), a, as, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file or s3://bucket/key (default: backup_YYYYMMDD_HHMMSS.json)")
	cmd.Flags().StringVar(&as, "as", "", "Email of the admin performing the export (required)")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

func importCmd(configPath *string) *cobra.Command {
	var input, as string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load an archive from a file or s3://bucket/key into the community of --as",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return runImport(cmd.Context(), a, as, input)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Input file or s3://bucket/key (required)")
	cmd.Flags().StringVar(&as, "as", "", "Email of the admin performing the import (required)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

// actor resolves the --as flag to a user
func (a *app) actor(ctx context.Context, addr string) (*models.User, error) {
	user, err := repository.NewUserRepository(a.db).GetByEmail(ctx, strings.ToLower(strings.TrimSpace(addr)))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("no user with email %s", addr)
	}
	return user, nil
}

func (a *app) blobStore(ctx context.Context, bucket string) (*blob.Store, error) {
	return blob.New(ctx, blob.Config{
		Region:    a.cfg.AWSRegion,
		Bucket:    bucket,
		Endpoint:  a.cfg.BackupS3Endpoint,
		PathStyle: a.cfg.BackupS3PathStyle,
	})
}

func runExport(ctx context.Context, a *app, as, output string) error {
	svc, err := a.services(ctx, nil)
	if err != nil {
		return err
	}
	user, err := a.actor(ctx, as)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if _, err := svc.Backup.Export(ctx, user, &buf); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	size := buf.Len()

	if bucket, key, ok := blob.ParseURL(output); ok {
		store, err := a.blobStore(ctx, bucket)
		if err != nil {
			return err
		}
		if err := store.Put(ctx, key, &buf, "application/json"); err != nil {
			return err
		}
	} else {
		if dir := filepath.Dir(output); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		if err := os.WriteFile(output, buf.Bytes(), 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", output, err)
		}
	}

	a.logger.Info("Export complete",
		zap.String("output", output),
		zap.String("size", fmt.Sprintf("%.2f MB", float64(size)/1024/1024)),
	)
	return nil
}

func runImport(ctx context.Context, a *app, as, input string) error {
	svc, err := a.services(ctx, nil)
	if err != nil {
		return err
	}
	user, err := a.actor(ctx, as)
	if err != nil {
		return err
	}

	var r io.ReadCloser
	if bucket, key, ok := blob.ParseURL(input); ok {
		store, err := a.blobStore(ctx, bucket)
		if err != nil {
			return err
		}
		if r, err = store.Get(ctx, key); err != nil {
			return err
		}
	} else {
		if r, err = os.Open(input); err != nil {
			return fmt.Errorf("failed to open %s: %w", input, err)
		}
	}
	defer r.Close()

	summary, err := svc.Backup.Import(ctx, user, r)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	a.logger.Info("Import complete",
		zap.String("input", input),
		zap.Int("families", summary.Families),
		zap.Int("members", summary.Members),
		zap.Int("visits", summary.Visits),
	)
	return nil
}
