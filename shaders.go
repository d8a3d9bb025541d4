package refract

import "embed"

// Shaders holds the default glass shaders at the paths named by
// DefaultConfig. The software device never compiles them: their text is only
// checked for the glass uniform declarations, and the shading itself is done
// by RefractionMaterial's Go shader.
//
//go:embed shaders/glass.vertexshader shaders/glass.fragmentshader
var Shaders embed.FS
