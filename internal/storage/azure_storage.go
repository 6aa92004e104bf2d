package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureSource reads inputs from one storage account.
type AzureSource struct {
	client   *azblob.Client
	account  string
	maxBytes int64
}

// NewAzureSource authenticates with a shared key.
func NewAzureSource(accountName, accountKey string, maxBytes int64) (*AzureSource, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}
	return &AzureSource{client: client, account: accountName, maxBytes: maxBytes}, nil
}

// Handles reports whether location points into this source's account.
func (s *AzureSource) Handles(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), s.account+".blob.core.windows.net")
}

func (s *AzureSource) Fetch(ctx context.Context, location string) (Object, error) {
	container, blobName, err := parseBlobURL(location)
	if err != nil {
		return Object{}, err
	}

	resp, err := s.client.DownloadStream(ctx, container, blobName, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return Object{}, fmt.Errorf("%w: %s/%s", ErrNotFound, container, blobName)
		}
		return Object{}, fmt.Errorf("download failed: %w", err)
	}
	body := resp.Body
	defer body.Close()

	data, err := readLimited(body, s.maxBytes)
	if err != nil {
		return Object{}, err
	}
	obj := Object{Name: path.Base(blobName), Data: data}
	if resp.ContentType != nil {
		obj.ContentType = *resp.ContentType
	}
	return obj, nil
}

// parseBlobURL accepts https://acct.blob.core.windows.net/container/path/to/blob
// and the older form with the blob name in a "blob" query parameter.
func parseBlobURL(location string) (container, blobName string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob URL: %w", err)
	}
	trimmed := strings.TrimPrefix(u.Path, "/")
	if name := u.Query().Get("blob"); name != "" {
		return strings.TrimSuffix(trimmed, "/"), name, nil
	}
	container, blobName, ok := strings.Cut(trimmed, "/")
	if !ok || container == "" || blobName == "" {
		return "", "", fmt.Errorf("invalid blob URL %q: expected /<container>/<blob>", location)
	}
	return container, blobName, nil
}
