package render

// Config carries everything the renderer needs to stand itself up. Paths are
// opaque inputs: shader binaries are handed to the driver as byte blobs and
// mesh/texture files go straight to their decoders.
type Config struct {
	AppName string

	FramesInFlight   int
	EnableValidation bool

	// ShaderDir holds the compiled SPIR-V modules vert.spv and frag.spv.
	ShaderDir string

	MeshPath     string
	MaterialPath string
	TexturePath  string

	// PipelineCachePath is where the driver pipeline cache blob is read on
	// startup and written back on shutdown. Empty disables caching.
	PipelineCachePath string
}

// DefaultConfig returns the configuration for the stock viking room scene.
func DefaultConfig() Config {
	return Config{
		AppName:           "cadence",
		FramesInFlight:    2,
		EnableValidation:  true,
		ShaderDir:         "shaders",
		MeshPath:          "meshes/viking_room.obj",
		MaterialPath:      "meshes/viking_room.mtl",
		TexturePath:       "images/viking_room.png",
		PipelineCachePath: "pipeline_cache.bin",
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.AppName == "" {
		c.AppName = def.AppName
	}
	if c.FramesInFlight == 0 {
		c.FramesInFlight = def.FramesInFlight
	}
	if c.ShaderDir == "" {
		c.ShaderDir = def.ShaderDir
	}
	if c.MeshPath == "" {
		c.MeshPath = def.MeshPath
	}
	if c.MaterialPath == "" {
		c.MaterialPath = def.MaterialPath
	}
	if c.TexturePath == "" {
		c.TexturePath = def.TexturePath
	}
	return c
}
