package helpers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resourcegraph/armresourcegraph"
)

// ARGQueryOptions represents options for executing an ARG query
type ARGQueryOptions struct {
	// Subscriptions to query. If nil, queries all accessible subscriptions
	Subscriptions []string
	// Maximum number of records to return. If 0, uses default (100)
	Top int32
	// Skip first N records
	Skip int32
	// Format for the results (defaults to ObjectArray)
	ResultFormat armresourcegraph.ResultFormat
}

// ARGClient wraps the Azure Resource Graph client for easier use
type ARGClient struct {
	client *armresourcegraph.Client
	logger *slog.Logger
}

// NewARGClient creates a new ARG client with the given credential
func NewARGClient(cred azcore.TokenCredential) (*ARGClient, error) {
	client, err := armresourcegraph.NewClient(cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ARG client: %w", err)
	}

	return &ARGClient{
		client: client,
		logger: slog.Default().With("component", "ARGClient"),
	}, nil
}

// ExecuteQuery runs an ARG query with the given options
func (c *ARGClient) ExecuteQuery(ctx context.Context, query string, opts *ARGQueryOptions) (*armresourcegraph.ClientResourcesResponse, error) {
	if opts == nil {
		opts = &ARGQueryOptions{
			ResultFormat: armresourcegraph.ResultFormatObjectArray,
		}
	}

	options := &armresourcegraph.QueryRequestOptions{
		ResultFormat: to.Ptr(opts.ResultFormat),
	}
	if opts.Top > 0 {
		options.Top = to.Ptr(opts.Top)
	}
	if opts.Skip > 0 {
		options.Skip = to.Ptr(opts.Skip)
	}

	var subPtrs []*string
	for _, sub := range opts.Subscriptions {
		subCopy := sub
		subPtrs = append(subPtrs, &subCopy)
	}

	request := armresourcegraph.QueryRequest{
		Query:         &query,
		Options:       options,
		Subscriptions: subPtrs,
	}

	response, err := c.client.Resources(ctx, request, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to execute ARG query: %w", err)
	}

	return &response, nil
}

// ExecutePaginatedQuery executes an ARG query and handles pagination automatically
func (c *ARGClient) ExecutePaginatedQuery(ctx context.Context, query string, opts *ARGQueryOptions, callback func(response *armresourcegraph.ClientResourcesResponse) error) error {
	if opts == nil {
		opts = &ARGQueryOptions{
			ResultFormat: armresourcegraph.ResultFormatObjectArray,
		}
	}

	var skip int32 = 0
	for {
		currentOpts := *opts
		currentOpts.Skip = skip

		response, err := c.ExecuteQuery(ctx, query, &currentOpts)
		if err != nil {
			return err
		}

		if err := callback(response); err != nil {
			return err
		}

		if response.TotalRecords == nil || response.Count == nil ||
			int64(skip) >= *response.TotalRecords || *response.Count == 0 {
			break
		}

		skip += int32(*response.Count)
	}

	return nil
}

// QueryAllResources projects the full detail row set for one subscription.
const QueryAllResources = `Resources
| where subscriptionId == '%s'
| project id, name, type, location, resourceGroup, tags, properties = pack_all()`

// QueryResourcesByType tallies resources per type for one subscription.
const QueryResourcesByType = `Resources
| where subscriptionId == '%s'
| summarize count=count() by type
| order by type asc`

// ProcessCountResponse processes a summarize-by-type response into a map of
// resource types to counts
func ProcessCountResponse(response *armresourcegraph.ClientResourcesResponse) (map[string]int, error) {
	resourceMap := make(map[string]int)

	if response == nil || response.Data == nil {
		return resourceMap, nil
	}

	rows, ok := response.Data.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected ARG response data type %T", response.Data)
	}

	for _, row := range rows {
		item, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		resourceType, ok := item["type"].(string)
		if !ok {
			continue
		}
		count, ok := item["count"].(float64)
		if !ok {
			continue
		}
		resourceMap[resourceType] += int(count)
	}

	return resourceMap, nil
}
