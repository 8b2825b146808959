package model

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/sentiment/pkg/errors"
)

// ArchiveEntry はモデルアーカイブ内の1ファイル
type ArchiveEntry struct {
	Name string
	Data []byte
}

// JSONEntry はvをインデント付きJSONにエンコードしたArchiveEntryを返す
func JSONEntry(name string, v interface{}) (ArchiveEntry, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ArchiveEntry{}, errors.Wrapf(err, "failed to encode %s", name)
	}
	return ArchiveEntry{Name: name, Data: data}, nil
}

// WriteArchive はエントリをzipアーカイブとしてpathに保存する
//
// 同じディレクトリの一時ファイルに書き込んでからリネームするため、
// 途中で失敗しても既存のアーカイブは壊れない。
//
// 使用例:
//
//	entry, _ := model.JSONEntry("model.json", trees)
//	err := model.WriteArchive(ctx, "Data/Model.zip", []model.ArchiveEntry{entry})
func WriteArchive(ctx context.Context, path string, entries []ArchiveEntry) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary archive")
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := WriteArchiveTo(ctx, tmp, entries); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return errors.Wrap(err, "failed to flush archive")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close archive")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "failed to move archive into %s", path)
	}
	return nil
}

// WriteArchiveTo はエントリをzip形式でwに書き込む
func WriteArchiveTo(ctx context.Context, w io.Writer, entries []ArchiveEntry) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			_ = zw.Close()
			return errors.Wrap(err, "archive write cancelled")
		}
		fw, err := zw.Create(e.Name)
		if err != nil {
			_ = zw.Close()
			return errors.Wrapf(err, "failed to add %s", e.Name)
		}
		if _, err := fw.Write(e.Data); err != nil {
			_ = zw.Close()
			return errors.Wrapf(err, "failed to write %s", e.Name)
		}
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "failed to finalize archive")
	}
	return nil
}

// ReadArchive はzipアーカイブを読み込み、エントリ名から内容へのマップを返す
func ReadArchive(ctx context.Context, path string) (map[string][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open archive %s", path)
	}
	return ReadArchiveFrom(ctx, data)
}

// ReadArchiveFrom はメモリ上のzipデータからエントリを読み込む
func ReadArchiveFrom(ctx context.Context, data []byte) (map[string][]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(err, "invalid model archive")
	}

	entries := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "archive read cancelled")
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open %s", f.Name)
		}
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", f.Name)
		}
		entries[f.Name] = content
	}
	return entries, nil
}

// DecodeJSONEntry はentries[name]をvにデコードする。エントリが無ければValueError。
func DecodeJSONEntry(entries map[string][]byte, name string, v interface{}) error {
	data, ok := entries[name]
	if !ok {
		return errors.NewValueError("DecodeJSONEntry", "archive is missing "+name)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "failed to decode %s", name)
	}
	return nil
}
