// Package backup writes and restores gzip'd tar archives holding a
// consistent copy of the SQLite database and, optionally, the config file.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// DBEntry is the archive name of the database copy.
const DBEntry = "peeringmanager.db"

// Create snapshots db with VACUUM INTO and writes it, plus configPath when
// set, to a new archive at archivePath.
func Create(ctx context.Context, db *sql.DB, configPath, archivePath string) error {
	tmpDir, err := os.MkdirTemp("", "peeringmanager-backup-")
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snapshot := filepath.Join(tmpDir, DBEntry)
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, snapshot); err != nil {
		return fmt.Errorf("snapshot database: %w", err)
	}

	f, err := os.OpenFile(archivePath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)

	err = addFile(tw, snapshot, DBEntry)
	if err == nil && configPath != "" {
		err = addFile(tw, configPath, filepath.Base(configPath))
	}
	for _, c := range []io.Closer{tw, gw, f} {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		_ = os.Remove(archivePath)
		return fmt.Errorf("writing archive: %w", err)
	}
	return nil
}

func addFile(tw *tar.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o600,
		Size:    info.Size(),
		ModTime: info.ModTime().UTC().Truncate(time.Second),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, src)
	return err
}
