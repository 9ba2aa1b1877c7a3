package backend

import (
	"context"
)

// PresignDocuments requests one presigned upload URL per document type
// in a single batch call.
func (c *Client) PresignDocuments(ctx context.Context, documentTypes []string) ([]PresignedURL, error) {
	resp, err := c.http.Post(ctx, "/farmers/documents/presign",
		presignRequest{DocumentTypes: documentTypes})
	if err != nil {
		return nil, asAPIError(err)
	}

	var presigned presignResponse
	if err := c.http.ProcessJSONResponse(resp, &presigned); err != nil {
		return nil, asAPIError(err)
	}
	return presigned.Data.URLs, nil
}

// RegisterFarmer creates a farmer record from personal and business info
// plus the documents that uploaded successfully.
func (c *Client) RegisterFarmer(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	resp, err := c.http.Post(ctx, "/farmers/register", req)
	if err != nil {
		return nil, asAPIError(err)
	}

	var registered RegisterResponse
	if err := c.http.ProcessJSONResponse(resp, &registered); err != nil {
		return nil, asAPIError(err)
	}
	return &registered, nil
}
