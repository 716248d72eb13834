package version

// Version is the current mxmh version. It is a var so release builds can
// stamp it:
//
//	go build -ldflags "-X github.com/vanderheijden86/mxmh/pkg/version.Version=v0.3.0"
var Version = "v0.1.0"
