package factory

import (
	"fmt"

	"github.com/anime-shed/kyc-console-go/internal/apiclient"
	"github.com/anime-shed/kyc-console-go/internal/config"
	"github.com/anime-shed/kyc-console-go/internal/provider"
	"github.com/anime-shed/kyc-console-go/internal/repository"
	"github.com/anime-shed/kyc-console-go/internal/session"
	"github.com/anime-shed/kyc-console-go/internal/storage"
	"github.com/anime-shed/kyc-console-go/pkg/validation"
)

// ProviderType selects the backend implementation
type ProviderType string

const (
	// RemoteProvider talks to the e-KYC backend over HTTP
	RemoteProvider ProviderType = "remote"
	// MockProvider answers from memory
	MockProvider ProviderType = "mock"
)

// ProviderTypeFor maps the MOCK_MODE switch to a provider type
func ProviderTypeFor(mock bool) ProviderType {
	if mock {
		return MockProvider
	}
	return RemoteProvider
}

// StorageType represents different input sources
type StorageType string

const (
	// HTTPStorage for http(s) downloads
	HTTPStorage StorageType = "http"
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
	// LocalStorage for local file system
	LocalStorage StorageType = "local"
)

// ProviderFactory creates backend providers
type ProviderFactory interface {
	CreateProvider(providerType ProviderType) (provider.Provider, error)
}

// StorageFactory creates input sources
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.Source, error)
}

type providerFactory struct {
	cfg   *config.Config
	creds *session.Credentials
}

// NewProviderFactory creates a provider factory bound to one credential context
func NewProviderFactory(cfg *config.Config, creds *session.Credentials) ProviderFactory {
	return &providerFactory{cfg: cfg, creds: creds}
}

func (f *providerFactory) CreateProvider(providerType ProviderType) (provider.Provider, error) {
	switch providerType {
	case RemoteProvider:
		client := apiclient.New(f.creds, apiclient.WithRequestTimeout(f.cfg.RequestTimeout))
		return provider.NewRemote(client), nil
	case MockProvider:
		return provider.NewFake(), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}

type storageFactory struct {
	cfg *config.Config
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

func (f *storageFactory) CreateStorage(storageType StorageType) (storage.Source, error) {
	switch storageType {
	case HTTPStorage:
		return storage.NewHTTPSource(f.cfg.UploadMaxBytes), nil
	case AzureStorage:
		if !f.cfg.AzureEnabled() {
			return nil, fmt.Errorf("azure storage requires AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY")
		}
		return storage.NewAzureSource(f.cfg.AzureAccountName, f.cfg.AzureAccountKey, f.cfg.UploadMaxBytes)
	case LocalStorage:
		return storage.NewFileSource(f.cfg.UploadMaxBytes), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	ProviderFactory ProviderFactory
	StorageFactory  StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config, creds *session.Credentials) *ComponentFactory {
	return &ComponentFactory{
		ProviderFactory: NewProviderFactory(cfg, creds),
		StorageFactory:  NewStorageFactory(cfg),
	}
}

// NewInputRepository wires every configured source behind one router.
// Local files are only reachable when allowLocal is set.
func (f *ComponentFactory) NewInputRepository(cfg *config.Config, allowLocal bool) (*repository.SourceRepository, error) {
	remote, err := f.StorageFactory.CreateStorage(HTTPStorage)
	if err != nil {
		return nil, err
	}
	var opts []repository.Option
	if allowLocal {
		local, err := f.StorageFactory.CreateStorage(LocalStorage)
		if err != nil {
			return nil, err
		}
		opts = append(opts, repository.WithLocal(local))
	}
	if cfg.AzureEnabled() {
		blob, err := f.StorageFactory.CreateStorage(AzureStorage)
		if err != nil {
			return nil, err
		}
		scoped, ok := blob.(repository.ScopedSource)
		if !ok {
			return nil, fmt.Errorf("azure storage does not scope its URLs")
		}
		opts = append(opts, repository.WithScoped(scoped))
	}
	return repository.NewSourceRepository(remote, validation.NewSourceURLValidator(), opts...), nil
}
