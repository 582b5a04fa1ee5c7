package repository

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jarcoal/httpmock"
	"github.com/keywheel/go-keywheel-server/types"
)

// implements BlobRepository using CouchDB. Each blob lives in its own
// document (_id = blob key) with the payload base64 encoded; revisions are
// resolved internally so callers see plain overwrite semantics.
type CouchDBRepository struct {
	client *resty.Client
	dbName string
}

func NewCouchDBRepository(url, dbName string, username string, password string, mock bool) (BlobRepository, error) {
	cl := resty.New().SetBaseURL(url).SetTimeout(time.Second * 10)
	cl.SetHeader("Content-Type", "application/json")
	cl.SetHeader("Accept", "application/json")
	cl.SetHeader("User-Agent", "go-keywheel-server/1.0.0")
	cl.SetBasicAuth(username, password)

	if mock {
		httpmock.ActivateNonDefault(cl.GetClient())
	}

	existsRes, existsErr := cl.R().Head(dbName)
	if existsErr != nil {
		return nil, fmt.Errorf("failed to check if database exists: %s", existsErr.Error())
	}
	if existsRes.StatusCode() == 200 {
		return &CouchDBRepository{cl, dbName}, nil
	}

	var ok types.OK
	var dbErr types.CouchDBError
	// create DB since it doesn't exist
	cl.R().SetResult(&ok).SetError(&dbErr).Put(dbName)
	if dbErr.Error != "" {
		return nil, fmt.Errorf("failed to create database %s: %s", dbName, dbErr.Error)
	}
	if !ok.IsOK {
		return nil, fmt.Errorf("failed to create database %s", dbName)
	}
	return &CouchDBRepository{cl, dbName}, nil
}

// Get returns the blob stored under key
func (c *CouchDBRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var doc types.BlobDocument
	var dbErr types.CouchDBError

	response, err := c.client.R().SetContext(ctx).SetResult(&doc).SetError(&dbErr).Get(fmt.Sprintf("%s/%s", c.dbName, key))
	if err != nil {
		return nil, err
	}
	if response.StatusCode() == 404 {
		return nil, types.ErrNotFound
	}
	if dbErr.Error != "" {
		return nil, fmt.Errorf("failed to get document: %s", dbErr.Error)
	}

	blob, decErr := base64.StdEncoding.DecodeString(doc.BlobBase64)
	if decErr != nil {
		return nil, fmt.Errorf("failed to decode stored blob: %s", decErr.Error())
	}
	return blob, nil
}

// Put overwrites the blob under key, carrying over the current revision
func (c *CouchDBRepository) Put(ctx context.Context, key string, data []byte) error {
	// fetch the current revision (404 means first write)
	var existing types.BlobDocument
	getRes, getErr := c.client.R().SetContext(ctx).SetResult(&existing).Get(fmt.Sprintf("%s/%s", c.dbName, key))
	if getErr != nil {
		return getErr
	}

	doc := types.BlobDocument{
		BlobBase64: base64.StdEncoding.EncodeToString(data),
		Updated:    time.Now().UnixMilli(),
	}
	if getRes.StatusCode() == 200 && existing.UnderscoreRev != "" {
		doc.UnderscoreRev = existing.UnderscoreRev
	}

	var ok types.OK
	var dbErr types.CouchDBError
	_, putErr := c.client.R().SetContext(ctx).SetBody(doc).SetResult(&ok).SetError(&dbErr).Put(fmt.Sprintf("%s/%s", c.dbName, key))
	if putErr != nil {
		return putErr
	}
	if dbErr.Error != "" {
		if dbErr.Error == "conflict" {
			return types.ErrConflict
		}
		return fmt.Errorf("failed to save document: %s", dbErr.Error)
	}
	return nil
}

// return name of the database
func (c *CouchDBRepository) GetDBName() string {
	return c.dbName
}

// returns a resty client
func (c *CouchDBRepository) GetClient() interface{} {
	return c.client
}
