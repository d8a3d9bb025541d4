package asset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ShaderSource holds the text of a vertex and fragment shader pair.
type ShaderSource struct {
	Vertex   string
	Fragment string

	VertexPath   string
	FragmentPath string
}

var (
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineComment  = regexp.MustCompile(`//[^\n]*`)
	uniformDecl  = regexp.MustCompile(`\buniform\s+(?:(?:lowp|mediump|highp)\s+)?(\w+)\s+(\w+)\s*(?:\[[^\]]*\])?\s*;`)
)

// Uniforms returns the uniform declarations of both stages keyed by name,
// with the GLSL type as value.
func (s ShaderSource) Uniforms() map[string]string {
	u := make(map[string]string)
	for _, src := range []string{s.Vertex, s.Fragment} {
		src = blockComment.ReplaceAllString(src, "")
		src = lineComment.ReplaceAllString(src, "")
		for _, m := range uniformDecl.FindAllStringSubmatch(src, -1) {
			u[m[2]] = m[1]
		}
	}
	return u
}

// Require checks that the shaders declare every uniform in names. The
// returned error is a *ResourceLoadError.
func (s ShaderSource) Require(names ...string) error {
	u := s.Uniforms()
	var missing []string
	for _, name := range names {
		if _, ok := u[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &ResourceLoadError{
			Kind: "shader",
			Path: s.FragmentPath,
			Err:  fmt.Errorf("missing uniform declarations: %s", strings.Join(missing, ", ")),
		}
	}
	return nil
}

// LoadShaders fetches a vertex and fragment shader concurrently. The handle
// resolves with a *ResourceLoadError if either fetch fails or a source is
// empty.
func LoadShaders(ctx context.Context, f Fetcher, vertexPath, fragmentPath string) *Handle[ShaderSource] {
	return Go(ctx, func(ctx context.Context) (ShaderSource, error) {
		src := ShaderSource{VertexPath: vertexPath, FragmentPath: fragmentPath}
		g, gctx := errgroup.WithContext(ctx)
		fetch := func(path string, dst *string) func() error {
			return func() error {
				b, err := f.Fetch(gctx, path)
				if err == nil && len(strings.TrimSpace(string(b))) == 0 {
					err = errors.New("empty shader source")
				}
				if err != nil {
					return loadError("shader", path, err)
				}
				*dst = string(b)
				return nil
			}
		}
		g.Go(fetch(vertexPath, &src.Vertex))
		g.Go(fetch(fragmentPath, &src.Fragment))
		if err := g.Wait(); err != nil {
			return ShaderSource{}, err
		}
		logger().Debug("shaders loaded", slog.String("vertex", vertexPath), slog.String("fragment", fragmentPath))
		return src, nil
	})
}
