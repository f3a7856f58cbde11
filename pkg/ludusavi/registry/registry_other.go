//go:build !windows

package registry

type unsupportedClient struct{}

func liveClient() Client { return unsupportedClient{} }

func (unsupportedClient) Supported() bool { return false }

func (unsupportedClient) Enumerate(string) ([]string, error) {
	return nil, ErrUnsupported
}

func (unsupportedClient) Export(string) (Key, error) {
	return nil, ErrUnsupported
}

func (unsupportedClient) Import(string, Key) error {
	return ErrUnsupported
}
