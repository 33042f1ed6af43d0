package assets

// Loader turns a file into its in-memory form.
type Loader interface {
	Load(path string) (interface{}, error) // `interface{}` here allows loaders to return various asset types
}

// Kind is the type of an asset, decided by its file extension.
type Kind int

const (
	KindNone Kind = iota
	KindImage
	KindShader
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindShader:
		return "shader"
	case KindConfig:
		return "config"
	default:
		return "none"
	}
}
