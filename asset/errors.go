package asset

import "fmt"

// ResourceLoadError reports an asset that could not be fetched or decoded.
type ResourceLoadError struct {
	// Kind is the asset kind, such as "shader" or "mesh".
	Kind string
	Path string
	Err  error
}

func (e *ResourceLoadError) Error() string {
	return fmt.Sprintf("load %s %q: %v", e.Kind, e.Path, e.Err)
}

func (e *ResourceLoadError) Unwrap() error { return e.Err }

func loadError(kind, path string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*ResourceLoadError); ok {
		return err
	}
	return &ResourceLoadError{Kind: kind, Path: path, Err: err}
}
