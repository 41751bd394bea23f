package rbacsuite

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"
)

// NetworkingCatalog covers the network-plane denials: virtual networks,
// subnets, route tables, public IPs, NAT gateways, peerings and storage
// account network rules.
func NetworkingCatalog() []TestCase {
	return []TestCase{
		{
			ID:          "NET-01",
			Category:    "REQ-08",
			Description: "Create a virtual network",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armnetwork.NewVirtualNetworksClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.BeginCreateOrUpdate(ctx, run.Env.ResourceGroup, run.probeName("vnet"), armnetwork.VirtualNetwork{
					Location: to.Ptr(run.Location),
					Properties: &armnetwork.VirtualNetworkPropertiesFormat{
						AddressSpace: &armnetwork.AddressSpace{
							AddressPrefixes: []*string{to.Ptr("10.99.0.0/16")},
						},
					},
				}, nil)
				return err
			},
			Undo: func(ctx context.Context, run *RunContext) error {
				client, err := armnetwork.NewVirtualNetworksClient(run.Subscription, run.Operator, nil)
				if err != nil {
					return err
				}
				poller, err := client.BeginDelete(ctx, run.Env.ResourceGroup, run.probeName("vnet"), nil)
				if err != nil {
					return err
				}
				_, err = poller.PollUntilDone(ctx, nil)
				return err
			},
		},
		{
			ID:          "NET-02",
			Category:    "REQ-08",
			Description: "Delete a virtual network",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armnetwork.NewVirtualNetworksClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.BeginDelete(ctx, run.Env.ResourceGroup, run.probeName("ghost-vnet"), nil)
				return err
			},
		},
		{
			ID:          "NET-03",
			Category:    "REQ-09",
			Description: "Create a subnet in an existing virtual network",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armnetwork.NewSubnetsClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.BeginCreateOrUpdate(ctx, run.Env.ResourceGroup, run.Env.VNets[0], run.probeName("snet"), armnetwork.Subnet{
					Properties: &armnetwork.SubnetPropertiesFormat{
						AddressPrefix: to.Ptr("10.90.3.0/24"),
					},
				}, nil)
				return err
			},
			Undo: func(ctx context.Context, run *RunContext) error {
				client, err := armnetwork.NewSubnetsClient(run.Subscription, run.Operator, nil)
				if err != nil {
					return err
				}
				poller, err := client.BeginDelete(ctx, run.Env.ResourceGroup, run.Env.VNets[0], run.probeName("snet"), nil)
				if err != nil {
					return err
				}
				_, err = poller.PollUntilDone(ctx, nil)
				return err
			},
		},
		{
			ID:          "NET-04",
			Category:    "REQ-09",
			Description: "Update an existing subnet's address prefix",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armnetwork.NewSubnetsClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.BeginCreateOrUpdate(ctx, run.Env.ResourceGroup, run.Env.VNets[1], run.Env.Subnets[3], armnetwork.Subnet{
					Properties: &armnetwork.SubnetPropertiesFormat{
						AddressPrefix: to.Ptr("10.91.9.0/24"),
					},
				}, nil)
				return err
			},
		},
		{
			ID:          "NET-05",
			Category:    "REQ-09",
			Description: "Delete a subnet",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armnetwork.NewSubnetsClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.BeginDelete(ctx, run.Env.ResourceGroup, run.Env.VNets[0], run.probeName("ghost-snet"), nil)
				return err
			},
		},
		{
			ID:          "NET-06",
			Category:    "REQ-09",
			Description: "Associate the route table with an existing subnet",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armnetwork.NewSubnetsClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				routeTableID := fmt.Sprintf("%s/providers/Microsoft.Network/routeTables/%s",
					run.Env.ResourceGroupID, run.Env.RouteTable)
				_, err = client.BeginCreateOrUpdate(ctx, run.Env.ResourceGroup, run.Env.VNets[1], run.Env.Subnets[2], armnetwork.Subnet{
					Properties: &armnetwork.SubnetPropertiesFormat{
						AddressPrefix: to.Ptr("10.91.1.0/24"),
						RouteTable:    &armnetwork.RouteTable{ID: to.Ptr(routeTableID)},
					},
				}, nil)
				return err
			},
		},
		{
			ID:          "NET-07",
			Category:    "REQ-10",
			Description: "Create a route table",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armnetwork.NewRouteTablesClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.BeginCreateOrUpdate(ctx, run.Env.ResourceGroup, run.probeName("rt"), armnetwork.RouteTable{
					Location: to.Ptr(run.Location),
				}, nil)
				return err
			},
			Undo: func(ctx context.Context, run *RunContext) error {
				client, err := armnetwork.NewRouteTablesClient(run.Subscription, run.Operator, nil)
				if err != nil {
					return err
				}
				poller, err := client.BeginDelete(ctx, run.Env.ResourceGroup, run.probeName("rt"), nil)
				if err != nil {
					return err
				}
				_, err = poller.PollUntilDone(ctx, nil)
				return err
			},
		},
		{
			ID:          "NET-08",
			Category:    "REQ-10",
			Description: "Add a blackhole route to the existing route table",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armnetwork.NewRoutesClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.BeginCreateOrUpdate(ctx, run.Env.ResourceGroup, run.Env.RouteTable, run.probeName("route"), armnetwork.Route{
					Properties: &armnetwork.RoutePropertiesFormat{
						AddressPrefix: to.Ptr("0.0.0.0/0"),
						NextHopType:   to.Ptr(armnetwork.RouteNextHopTypeNone),
					},
				}, nil)
				return err
			},
			Undo: func(ctx context.Context, run *RunContext) error {
				client, err := armnetwork.NewRoutesClient(run.Subscription, run.Operator, nil)
				if err != nil {
					return err
				}
				poller, err := client.BeginDelete(ctx, run.Env.ResourceGroup, run.Env.RouteTable, run.probeName("route"), nil)
				if err != nil {
					return err
				}
				_, err = poller.PollUntilDone(ctx, nil)
				return err
			},
		},
		{
			ID:          "NET-09",
			Category:    "REQ-11",
			Description: "Create a public IP address",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armnetwork.NewPublicIPAddressesClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.BeginCreateOrUpdate(ctx, run.Env.ResourceGroup, run.probeName("pip"), armnetwork.PublicIPAddress{
					Location: to.Ptr(run.Location),
					SKU:      &armnetwork.PublicIPAddressSKU{Name: to.Ptr(armnetwork.PublicIPAddressSKUNameStandard)},
					Properties: &armnetwork.PublicIPAddressPropertiesFormat{
						PublicIPAllocationMethod: to.Ptr(armnetwork.IPAllocationMethodStatic),
					},
				}, nil)
				return err
			},
			Undo: func(ctx context.Context, run *RunContext) error {
				client, err := armnetwork.NewPublicIPAddressesClient(run.Subscription, run.Operator, nil)
				if err != nil {
					return err
				}
				poller, err := client.BeginDelete(ctx, run.Env.ResourceGroup, run.probeName("pip"), nil)
				if err != nil {
					return err
				}
				_, err = poller.PollUntilDone(ctx, nil)
				return err
			},
		},
		{
			ID:          "NET-10",
			Category:    "REQ-11",
			Description: "Delete a public IP address",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armnetwork.NewPublicIPAddressesClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.BeginDelete(ctx, run.Env.ResourceGroup, run.probeName("ghost-pip"), nil)
				return err
			},
		},
		{
			ID:          "NET-11",
			Category:    "REQ-12",
			Description: "Create a NAT gateway",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armnetwork.NewNatGatewaysClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.BeginCreateOrUpdate(ctx, run.Env.ResourceGroup, run.probeName("nat"), armnetwork.NatGateway{
					Location: to.Ptr(run.Location),
					SKU:      &armnetwork.NatGatewaySKU{Name: to.Ptr(armnetwork.NatGatewaySKUNameStandard)},
				}, nil)
				return err
			},
			Undo: func(ctx context.Context, run *RunContext) error {
				client, err := armnetwork.NewNatGatewaysClient(run.Subscription, run.Operator, nil)
				if err != nil {
					return err
				}
				poller, err := client.BeginDelete(ctx, run.Env.ResourceGroup, run.probeName("nat"), nil)
				if err != nil {
					return err
				}
				_, err = poller.PollUntilDone(ctx, nil)
				return err
			},
		},
		{
			ID:          "NET-12",
			Category:    "REQ-12",
			Description: "Update the existing NAT gateway's tags",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armnetwork.NewNatGatewaysClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.UpdateTags(ctx, run.Env.ResourceGroup, run.Env.NATGateway, armnetwork.TagsObject{
					Tags: map[string]*string{"tampered": to.Ptr("true")},
				}, nil)
				return err
			},
		},
		{
			ID:          "NET-13",
			Category:    "REQ-12",
			Description: "Delete a NAT gateway",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armnetwork.NewNatGatewaysClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.BeginDelete(ctx, run.Env.ResourceGroup, run.probeName("ghost-nat"), nil)
				return err
			},
		},
		{
			ID:          "NET-14",
			Category:    "REQ-13",
			Description: "Create a peering between the two virtual networks",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armnetwork.NewVirtualNetworkPeeringsClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				remoteID := fmt.Sprintf("%s/providers/Microsoft.Network/virtualNetworks/%s",
					run.Env.ResourceGroupID, run.Env.VNets[1])
				_, err = client.BeginCreateOrUpdate(ctx, run.Env.ResourceGroup, run.Env.VNets[0], run.probeName("peer"), armnetwork.VirtualNetworkPeering{
					Properties: &armnetwork.VirtualNetworkPeeringPropertiesFormat{
						RemoteVirtualNetwork: &armnetwork.SubResource{ID: to.Ptr(remoteID)},
					},
				}, nil)
				return err
			},
			Undo: func(ctx context.Context, run *RunContext) error {
				client, err := armnetwork.NewVirtualNetworkPeeringsClient(run.Subscription, run.Operator, nil)
				if err != nil {
					return err
				}
				poller, err := client.BeginDelete(ctx, run.Env.ResourceGroup, run.Env.VNets[0], run.probeName("peer"), nil)
				if err != nil {
					return err
				}
				_, err = poller.PollUntilDone(ctx, nil)
				return err
			},
		},
		{
			ID:          "NET-15",
			Category:    "REQ-14",
			Description: "Tighten the storage account's network rules",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armstorage.NewAccountsClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.Update(ctx, run.Env.ResourceGroup, run.Env.StorageAccount, armstorage.AccountUpdateParameters{
					Properties: &armstorage.AccountPropertiesUpdateParameters{
						NetworkRuleSet: &armstorage.NetworkRuleSet{
							DefaultAction: to.Ptr(armstorage.DefaultActionDeny),
							Bypass:        to.Ptr(armstorage.BypassAzureServices),
						},
					},
				}, nil)
				return err
			},
			Undo: func(ctx context.Context, run *RunContext) error {
				client, err := armstorage.NewAccountsClient(run.Subscription, run.Operator, nil)
				if err != nil {
					return err
				}
				_, err = client.Update(ctx, run.Env.ResourceGroup, run.Env.StorageAccount, armstorage.AccountUpdateParameters{
					Properties: &armstorage.AccountPropertiesUpdateParameters{
						NetworkRuleSet: &armstorage.NetworkRuleSet{
							DefaultAction: to.Ptr(armstorage.DefaultActionAllow),
						},
					},
				}, nil)
				return err
			},
		},
		{
			ID:          "NET-16",
			Category:    "REQ-14",
			Description: "Create a storage account",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armstorage.NewAccountsClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.BeginCreate(ctx, run.Env.ResourceGroup, probeStorageName(run), armstorage.AccountCreateParameters{
					Location: to.Ptr(run.Location),
					SKU:      &armstorage.SKU{Name: to.Ptr(armstorage.SKUNameStandardLRS)},
					Kind:     to.Ptr(armstorage.KindStorageV2),
				}, nil)
				return err
			},
			Undo: func(ctx context.Context, run *RunContext) error {
				client, err := armstorage.NewAccountsClient(run.Subscription, run.Operator, nil)
				if err != nil {
					return err
				}
				_, err = client.Delete(ctx, run.Env.ResourceGroup, probeStorageName(run), nil)
				return err
			},
		},
	}
}

// probeStorageName keeps the 24-character, lowercase-alphanumeric limit.
func probeStorageName(run *RunContext) string {
	name := "probe" + run.Env.StorageAccount
	if len(name) > 24 {
		name = name[:24]
	}
	return name
}
