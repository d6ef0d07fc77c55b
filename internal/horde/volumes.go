package horde

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/validate"
	pkgerrors "github.com/pkg/errors"
)

const (
	// InputVolumePrefix is the only directory input volumes may be mounted under.
	InputVolumePrefix = "/volume/"
	// OutputVolumePrefix is the only directory output volumes may be read from.
	OutputVolumePrefix = "/output/"
)

const (
	VolumeTypeHuggingface = "huggingface_volume"
	VolumeTypeInline      = "inline"
	VolumeTypeSingleFile  = "single_file"

	UploadTypeSingleFilePost = "single_file_post"
	UploadTypeSingleFilePut  = "single_file_put"
)

// Volume is the wire form of an input volume as sent to the facilitator.
type Volume struct {
	VolumeType    string   `json:"volume_type"`
	RepoID        string   `json:"repo_id,omitempty"`
	RepoType      string   `json:"repo_type,omitempty"`
	Revision      string   `json:"revision,omitempty"`
	AllowPatterns []string `json:"allow_patterns,omitempty"`
	Contents      string   `json:"contents,omitempty"`
	URL           string   `json:"url,omitempty"`
	RelativePath  string   `json:"relative_path,omitempty"`
}

// Validate validates Volume
func (m *Volume) Validate(formats strfmt.Registry) error {
	var res []error

	if err := validate.Enum("volume_type", "body", m.VolumeType, []interface{}{VolumeTypeHuggingface, VolumeTypeInline, VolumeTypeSingleFile}); err != nil {
		res = append(res, err)
	}

	switch m.VolumeType {
	case VolumeTypeHuggingface:
		if err := validate.RequiredString("repo_id", "body", m.RepoID); err != nil {
			res = append(res, err)
		}
	case VolumeTypeInline:
		if err := validate.RequiredString("contents", "body", m.Contents); err != nil {
			res = append(res, err)
		}
	case VolumeTypeSingleFile:
		if err := validate.RequiredString("url", "body", m.URL); err != nil {
			res = append(res, err)
		}
		if err := validate.RequiredString("relative_path", "body", m.RelativePath); err != nil {
			res = append(res, err)
		}
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// Upload is the wire form of an output upload.
type Upload struct {
	OutputUploadType string            `json:"output_upload_type"`
	RelativePath     string            `json:"relative_path"`
	URL              string            `json:"url"`
	FormFields       map[string]string `json:"form_fields,omitempty"`
	SignedHeaders    map[string]string `json:"signed_headers,omitempty"`
}

// Validate validates Upload
func (m *Upload) Validate(formats strfmt.Registry) error {
	var res []error

	if err := validate.Enum("output_upload_type", "body", m.OutputUploadType, []interface{}{UploadTypeSingleFilePost, UploadTypeSingleFilePut}); err != nil {
		res = append(res, err)
	}
	if err := validate.RequiredString("relative_path", "body", m.RelativePath); err != nil {
		res = append(res, err)
	}
	if err := validate.RequiredString("url", "body", m.URL); err != nil {
		res = append(res, err)
	}
	if m.OutputUploadType == UploadTypeSingleFilePut && len(m.FormFields) > 0 {
		res = append(res, errors.New(422, "form_fields in body is only supported by %s uploads", UploadTypeSingleFilePost))
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// InputVolume describes how the executor obtains data mounted at a path under /volume/.
type InputVolume interface {
	ToVolume(mountPath string) (Volume, error)
}

// OutputVolume describes where the executor uploads a file found under /output/.
type OutputVolume interface {
	ToUpload(mountPath string) (Upload, error)
}

// HuggingfaceInputVolume downloads a Hugging Face repository.
type HuggingfaceInputVolume struct {
	RepoID        string
	RepoType      string
	Revision      string
	AllowPatterns []string
}

func (v HuggingfaceInputVolume) ToVolume(mountPath string) (Volume, error) {
	rel, err := relativePath(mountPath, InputVolumePrefix)
	if err != nil {
		return Volume{}, err
	}
	return Volume{
		VolumeType:    VolumeTypeHuggingface,
		RepoID:        v.RepoID,
		RepoType:      v.RepoType,
		Revision:      v.Revision,
		AllowPatterns: v.AllowPatterns,
		RelativePath:  rel,
	}, nil
}

// InlineInputVolume carries a base64 encoded zip archive in the request itself.
type InlineInputVolume struct {
	Contents string
}

func (v InlineInputVolume) ToVolume(mountPath string) (Volume, error) {
	rel, err := relativePath(mountPath, InputVolumePrefix)
	if err != nil {
		return Volume{}, err
	}
	return Volume{
		VolumeType:   VolumeTypeInline,
		Contents:     v.Contents,
		RelativePath: rel,
	}, nil
}

// HTTPInputVolume downloads a single file.
type HTTPInputVolume struct {
	URL string
}

func (v HTTPInputVolume) ToVolume(mountPath string) (Volume, error) {
	rel, err := relativePath(mountPath, InputVolumePrefix)
	if err != nil {
		return Volume{}, err
	}
	if rel == "" {
		return Volume{}, &ValidationError{Field: "input_volumes", Cause: pkgerrors.Errorf("http input volume needs a file path, got %q", mountPath)}
	}
	return Volume{
		VolumeType:   VolumeTypeSingleFile,
		URL:          v.URL,
		RelativePath: rel,
	}, nil
}

// HTTPOutputVolume uploads a single output file with POST (form upload) or PUT (e.g. presigned URL).
type HTTPOutputVolume struct {
	HTTPMethod    string
	URL           string
	FormFields    map[string]string
	SignedHeaders map[string]string
}

func (v HTTPOutputVolume) ToUpload(mountPath string) (Upload, error) {
	rel, err := relativePath(mountPath, OutputVolumePrefix)
	if err != nil {
		return Upload{}, err
	}
	if rel == "" {
		return Upload{}, &ValidationError{Field: "output_volumes", Cause: pkgerrors.Errorf("output volume needs a file path, got %q", mountPath)}
	}

	var uploadType string
	switch strings.ToUpper(v.HTTPMethod) {
	case "", "POST":
		uploadType = UploadTypeSingleFilePost
	case "PUT":
		uploadType = UploadTypeSingleFilePut
	default:
		return Upload{}, &ValidationError{Field: "output_volumes", Cause: pkgerrors.Errorf("unsupported upload method %q", v.HTTPMethod)}
	}

	return Upload{
		OutputUploadType: uploadType,
		RelativePath:     rel,
		URL:              v.URL,
		FormFields:       v.FormFields,
		SignedHeaders:    v.SignedHeaders,
	}, nil
}

func relativePath(mountPath, prefix string) (string, error) {
	if !strings.HasPrefix(mountPath, prefix) {
		return "", &ValidationError{Field: "volumes", Cause: pkgerrors.Errorf("mount path %q must start with %s", mountPath, prefix)}
	}
	rel := strings.TrimPrefix(mountPath, prefix)
	if rel == "" {
		return "", nil
	}
	clean := filepath.ToSlash(filepath.Clean(rel))
	if clean != strings.TrimSuffix(rel, "/") || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", &ValidationError{Field: "volumes", Cause: pkgerrors.Errorf("mount path %q is not clean", mountPath)}
	}
	return rel, nil
}

// sortedKeys keeps the volume order of a request stable.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func buildVolumes(inputs map[string]InputVolume) ([]Volume, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	volumes := make([]Volume, 0, len(inputs))
	for _, mountPath := range sortedKeys(inputs) {
		v, err := inputs[mountPath].ToVolume(mountPath)
		if err != nil {
			return nil, err
		}
		if err := v.Validate(strfmt.Default); err != nil {
			return nil, &ValidationError{Field: "input_volumes", Cause: err}
		}
		volumes = append(volumes, v)
	}
	return volumes, nil
}

func buildUploads(outputs map[string]OutputVolume) ([]Upload, error) {
	if len(outputs) == 0 {
		return nil, nil
	}
	uploads := make([]Upload, 0, len(outputs))
	for _, mountPath := range sortedKeys(outputs) {
		u, err := outputs[mountPath].ToUpload(mountPath)
		if err != nil {
			return nil, err
		}
		if err := u.Validate(strfmt.Default); err != nil {
			return nil, &ValidationError{Field: "output_volumes", Cause: err}
		}
		uploads = append(uploads, u)
	}
	return uploads, nil
}

// NewInlineInputVolumeFromPath packs a file or directory into an inline volume.
// A file that already is a zip archive is sent as is.
func NewInlineInputVolumeFromPath(path string) (*InlineInputVolume, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to stat inline volume source")
	}

	if !info.IsDir() {
		mtype, err := mimetype.DetectFile(path)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "failed to detect inline volume content type")
		}
		if mtype.Is("application/zip") {
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, pkgerrors.Wrap(err, "failed to read inline volume source")
			}
			return &InlineInputVolume{Contents: base64.StdEncoding.EncodeToString(raw)}, nil
		}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	root := path
	if !info.IsDir() {
		root = filepath.Dir(path)
	}

	walkErr := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		return addZipFile(zw, p, filepath.ToSlash(name))
	})
	if walkErr != nil {
		return nil, pkgerrors.Wrap(walkErr, "failed to pack inline volume")
	}
	if err := zw.Close(); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to finish inline volume archive")
	}

	return &InlineInputVolume{Contents: base64.StdEncoding.EncodeToString(buf.Bytes())}, nil
}

func addZipFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
