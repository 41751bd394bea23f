package stages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/google/uuid"
	"github.com/silverlining-sec/nimbus/internal/helpers"
	"github.com/silverlining-sec/nimbus/internal/logs"
	"github.com/silverlining-sec/nimbus/pkg/options"
	"github.com/silverlining-sec/nimbus/pkg/types"
)

// RepairGroupName derives the repair resource group for a source VM. Restore
// relies on this derivation instead of a state file.
func RepairGroupName(vmName string) string {
	return fmt.Sprintf("repair-%s-rg", strings.ToLower(vmName))
}

func repairVMName(vmName string) string {
	name := fmt.Sprintf("rep-%s", vmName)
	// Windows computer names cap at 15 characters.
	if len(name) > 15 {
		name = name[:15]
	}
	return name
}

func repairDiskName(vmName string) string {
	return fmt.Sprintf("%s-repair-disk", vmName)
}

func repairSnapshotName(vmName string) string {
	return fmt.Sprintf("%s-repair-snap", vmName)
}

type vmRepairClients struct {
	vms       *armcompute.VirtualMachinesClient
	disks     *armcompute.DisksClient
	snapshots *armcompute.SnapshotsClient
	groups    *armresources.ResourceGroupsClient
	vnets     *armnetwork.VirtualNetworksClient
	publicIPs *armnetwork.PublicIPAddressesClient
	nics      *armnetwork.InterfacesClient
}

func newVMRepairClients(cred azcore.TokenCredential, subscription string) (*vmRepairClients, error) {
	vms, err := armcompute.NewVirtualMachinesClient(subscription, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create VM client: %w", err)
	}
	disks, err := armcompute.NewDisksClient(subscription, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create disk client: %w", err)
	}
	snapshots, err := armcompute.NewSnapshotsClient(subscription, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot client: %w", err)
	}
	groups, err := armresources.NewResourceGroupsClient(subscription, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource group client: %w", err)
	}
	vnets, err := armnetwork.NewVirtualNetworksClient(subscription, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create vnet client: %w", err)
	}
	publicIPs, err := armnetwork.NewPublicIPAddressesClient(subscription, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create public IP client: %w", err)
	}
	nics, err := armnetwork.NewInterfacesClient(subscription, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create NIC client: %w", err)
	}

	return &vmRepairClients{
		vms:       vms,
		disks:     disks,
		snapshots: snapshots,
		groups:    groups,
		vnets:     vnets,
		publicIPs: publicIPs,
		nics:      nics,
	}, nil
}

// AzureVMRepairCreateStage builds a repair environment for each incoming VM
// name: snapshot the OS disk, copy it into a new managed disk, and attach the
// copy as a data disk on a fresh repair VM in a derived resource group.
func AzureVMRepairCreateStage(ctx context.Context, opts []*types.Option, in <-chan string) <-chan *types.VMRepairState {
	logger := logs.NewStageLogger(ctx, opts, "AzureVMRepairCreateStage")
	out := make(chan *types.VMRepairState)

	subscription := options.GetValue(options.AzureSubscriptionOpt.Name, opts)
	sourceGroup := options.GetValue(options.AzureResourceGroupOpt.Name, opts)

	go func() {
		defer close(out)

		cred, err := helpers.GetAzureCredentials()
		if err != nil {
			logger.Error("Failed to get Azure credential", slog.String("error", err.Error()))
			return
		}

		clients, err := newVMRepairClients(cred, subscription)
		if err != nil {
			logger.Error(err.Error())
			return
		}

		for vmName := range in {
			state, err := createRepairEnvironment(ctx, logger, clients, subscription, sourceGroup, vmName)
			if err != nil {
				logger.Error("Repair environment failed",
					slog.String("vm", vmName),
					slog.String("error", err.Error()))
				continue
			}

			select {
			case out <- state:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func createRepairEnvironment(ctx context.Context, logger *slog.Logger, clients *vmRepairClients, subscription, sourceGroup, vmName string) (*types.VMRepairState, error) {
	vm, err := clients.vms.Get(ctx, sourceGroup, vmName, &armcompute.VirtualMachinesClientGetOptions{
		Expand: to.Ptr(armcompute.InstanceViewTypesInstanceView),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get source VM: %w", err)
	}

	if vm.Properties == nil || vm.Properties.StorageProfile == nil ||
		vm.Properties.StorageProfile.OSDisk == nil ||
		vm.Properties.StorageProfile.OSDisk.ManagedDisk == nil {
		return nil, fmt.Errorf("source VM %s has no managed OS disk", vmName)
	}

	location := *vm.Location
	osDiskID := *vm.Properties.StorageProfile.OSDisk.ManagedDisk.ID
	osType := string(*vm.Properties.StorageProfile.OSDisk.OSType)
	wasRunning := vmIsRunning(vm.VirtualMachine)

	state := &types.VMRepairState{
		SourceVMID:        *vm.ID,
		SourceVMName:      vmName,
		SourceOSDiskID:    osDiskID,
		SourceGroup:       sourceGroup,
		SubscriptionID:    subscription,
		RepairGroup:       RepairGroupName(vmName),
		OSType:            osType,
		SourceWasRunning:  wasRunning,
		Location:          location,
		CreatedAtUnixTime: time.Now().Unix(),
	}

	logger.Info("Creating repair resource group", slog.String("group", state.RepairGroup))
	if _, err := clients.groups.CreateOrUpdate(ctx, state.RepairGroup, armresources.ResourceGroup{
		Location: to.Ptr(location),
		Tags: map[string]*string{
			"nimbus-repair-source": to.Ptr(*vm.ID),
		},
	}, nil); err != nil {
		return nil, fmt.Errorf("failed to create repair resource group: %w", err)
	}

	logger.Info("Snapshotting OS disk", slog.String("disk", osDiskID))
	snapPoller, err := clients.snapshots.BeginCreateOrUpdate(ctx, state.RepairGroup, repairSnapshotName(vmName), armcompute.Snapshot{
		Location: to.Ptr(location),
		Properties: &armcompute.SnapshotProperties{
			CreationData: &armcompute.CreationData{
				CreateOption:     to.Ptr(armcompute.DiskCreateOptionCopy),
				SourceResourceID: to.Ptr(osDiskID),
			},
		},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start snapshot: %w", err)
	}
	snap, err := snapPoller.PollUntilDone(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot did not complete: %w", err)
	}
	state.SnapshotID = *snap.ID

	logger.Info("Copying snapshot into repair disk")
	diskPoller, err := clients.disks.BeginCreateOrUpdate(ctx, state.RepairGroup, repairDiskName(vmName), armcompute.Disk{
		Location: to.Ptr(location),
		Properties: &armcompute.DiskProperties{
			CreationData: &armcompute.CreationData{
				CreateOption:     to.Ptr(armcompute.DiskCreateOptionCopy),
				SourceResourceID: to.Ptr(state.SnapshotID),
			},
		},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start disk copy: %w", err)
	}
	disk, err := diskPoller.PollUntilDone(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("disk copy did not complete: %w", err)
	}
	state.CopiedDiskID = *disk.ID

	nicID, err := createRepairNetwork(ctx, clients, state.RepairGroup, vmName, location)
	if err != nil {
		return nil, err
	}

	logger.Info("Creating repair VM", slog.String("name", repairVMName(vmName)))
	repairVM, err := buildRepairVM(location, osType, nicID, state.CopiedDiskID)
	if err != nil {
		return nil, err
	}

	vmPoller, err := clients.vms.BeginCreateOrUpdate(ctx, state.RepairGroup, repairVMName(vmName), repairVM, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start repair VM creation: %w", err)
	}
	created, err := vmPoller.PollUntilDone(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("repair VM creation did not complete: %w", err)
	}
	state.RepairVMID = *created.ID

	return state, nil
}

func createRepairNetwork(ctx context.Context, clients *vmRepairClients, group, vmName, location string) (string, error) {
	vnetPoller, err := clients.vnets.BeginCreateOrUpdate(ctx, group, vmName+"-repair-vnet", armnetwork.VirtualNetwork{
		Location: to.Ptr(location),
		Properties: &armnetwork.VirtualNetworkPropertiesFormat{
			AddressSpace: &armnetwork.AddressSpace{
				AddressPrefixes: []*string{to.Ptr("10.80.0.0/24")},
			},
			Subnets: []*armnetwork.Subnet{{
				Name: to.Ptr("repair"),
				Properties: &armnetwork.SubnetPropertiesFormat{
					AddressPrefix: to.Ptr("10.80.0.0/26"),
				},
			}},
		},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to start repair vnet creation: %w", err)
	}
	vnet, err := vnetPoller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("repair vnet creation did not complete: %w", err)
	}

	ipPoller, err := clients.publicIPs.BeginCreateOrUpdate(ctx, group, vmName+"-repair-ip", armnetwork.PublicIPAddress{
		Location: to.Ptr(location),
		Properties: &armnetwork.PublicIPAddressPropertiesFormat{
			PublicIPAllocationMethod: to.Ptr(armnetwork.IPAllocationMethodStatic),
		},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to start public IP creation: %w", err)
	}
	publicIP, err := ipPoller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("public IP creation did not complete: %w", err)
	}

	nicPoller, err := clients.nics.BeginCreateOrUpdate(ctx, group, vmName+"-repair-nic", armnetwork.Interface{
		Location: to.Ptr(location),
		Properties: &armnetwork.InterfacePropertiesFormat{
			IPConfigurations: []*armnetwork.InterfaceIPConfiguration{{
				Name: to.Ptr("primary"),
				Properties: &armnetwork.InterfaceIPConfigurationPropertiesFormat{
					Subnet:          vnet.Properties.Subnets[0],
					PublicIPAddress: &publicIP.PublicIPAddress,
				},
			}},
		},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to start NIC creation: %w", err)
	}
	nic, err := nicPoller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("NIC creation did not complete: %w", err)
	}

	return *nic.ID, nil
}

func buildRepairVM(location, osType, nicID, dataDiskID string) (armcompute.VirtualMachine, error) {
	// Throwaway credentials; the repair VM lives only for the repair window.
	adminPassword := "Rp1!" + uuid.NewString()

	var imageRef *armcompute.ImageReference
	var osProfile *armcompute.OSProfile

	switch strings.ToLower(osType) {
	case "windows":
		imageRef = &armcompute.ImageReference{
			Publisher: to.Ptr("MicrosoftWindowsServer"),
			Offer:     to.Ptr("WindowsServer"),
			SKU:       to.Ptr("2022-datacenter-smalldisk"),
			Version:   to.Ptr("latest"),
		}
		osProfile = &armcompute.OSProfile{
			ComputerName:  to.Ptr("repairvm"),
			AdminUsername: to.Ptr("repairadmin"),
			AdminPassword: to.Ptr(adminPassword),
		}
	case "linux":
		imageRef = &armcompute.ImageReference{
			Publisher: to.Ptr("Canonical"),
			Offer:     to.Ptr("0001-com-ubuntu-server-jammy"),
			SKU:       to.Ptr("22_04-lts-gen2"),
			Version:   to.Ptr("latest"),
		}
		osProfile = &armcompute.OSProfile{
			ComputerName:  to.Ptr("repairvm"),
			AdminUsername: to.Ptr("repairadmin"),
			AdminPassword: to.Ptr(adminPassword),
			LinuxConfiguration: &armcompute.LinuxConfiguration{
				DisablePasswordAuthentication: to.Ptr(false),
			},
		}
	default:
		return armcompute.VirtualMachine{}, fmt.Errorf("unsupported OS type %q", osType)
	}

	return armcompute.VirtualMachine{
		Location: to.Ptr(location),
		Properties: &armcompute.VirtualMachineProperties{
			HardwareProfile: &armcompute.HardwareProfile{
				VMSize: to.Ptr(armcompute.VirtualMachineSizeTypesStandardD2SV3),
			},
			StorageProfile: &armcompute.StorageProfile{
				ImageReference: imageRef,
				OSDisk: &armcompute.OSDisk{
					CreateOption: to.Ptr(armcompute.DiskCreateOptionTypesFromImage),
				},
				DataDisks: []*armcompute.DataDisk{{
					Lun:          to.Ptr(int32(0)),
					CreateOption: to.Ptr(armcompute.DiskCreateOptionTypesAttach),
					ManagedDisk: &armcompute.ManagedDiskParameters{
						ID: to.Ptr(dataDiskID),
					},
				}},
			},
			OSProfile: osProfile,
			NetworkProfile: &armcompute.NetworkProfile{
				NetworkInterfaces: []*armcompute.NetworkInterfaceReference{{
					ID: to.Ptr(nicID),
				}},
			},
		},
	}, nil
}

func vmIsRunning(vm armcompute.VirtualMachine) bool {
	if vm.Properties == nil || vm.Properties.InstanceView == nil {
		return false
	}
	for _, status := range vm.Properties.InstanceView.Statuses {
		if status.Code != nil && *status.Code == "PowerState/running" {
			return true
		}
	}
	return false
}

// AzureVMRepairRestoreStage swaps the repaired disk back onto each incoming
// source VM and tears the repair environment down. The source VM is
// deallocated for the swap and restarted afterwards; it is never deleted.
func AzureVMRepairRestoreStage(ctx context.Context, opts []*types.Option, in <-chan string) <-chan *types.VMRepairState {
	logger := logs.NewStageLogger(ctx, opts, "AzureVMRepairRestoreStage")
	out := make(chan *types.VMRepairState)

	subscription := options.GetValue(options.AzureSubscriptionOpt.Name, opts)
	sourceGroup := options.GetValue(options.AzureResourceGroupOpt.Name, opts)

	go func() {
		defer close(out)

		cred, err := helpers.GetAzureCredentials()
		if err != nil {
			logger.Error("Failed to get Azure credential", slog.String("error", err.Error()))
			return
		}

		clients, err := newVMRepairClients(cred, subscription)
		if err != nil {
			logger.Error(err.Error())
			return
		}

		for vmName := range in {
			state, err := restoreFromRepair(ctx, logger, clients, subscription, sourceGroup, vmName)
			if err != nil {
				logger.Error("Restore failed",
					slog.String("vm", vmName),
					slog.String("error", err.Error()))
				continue
			}

			select {
			case out <- state:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func restoreFromRepair(ctx context.Context, logger *slog.Logger, clients *vmRepairClients, subscription, sourceGroup, vmName string) (*types.VMRepairState, error) {
	repairGroup := RepairGroupName(vmName)

	repairedDisk, err := clients.disks.Get(ctx, repairGroup, repairDiskName(vmName), nil)
	if err != nil {
		return nil, fmt.Errorf("repair disk not found in %s: %w", repairGroup, err)
	}

	repairVM, err := clients.vms.Get(ctx, repairGroup, repairVMName(vmName), nil)
	if err == nil {
		// Detach before the swap so the disk is not attached twice.
		logger.Info("Detaching repaired disk from repair VM")
		repairVM.Properties.StorageProfile.DataDisks = nil
		detachPoller, err := clients.vms.BeginCreateOrUpdate(ctx, repairGroup, repairVMName(vmName), repairVM.VirtualMachine, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to detach repaired disk: %w", err)
		}
		if _, err := detachPoller.PollUntilDone(ctx, nil); err != nil {
			return nil, fmt.Errorf("detach did not complete: %w", err)
		}
	}

	vm, err := clients.vms.Get(ctx, sourceGroup, vmName, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get source VM: %w", err)
	}

	logger.Info("Deallocating source VM", slog.String("vm", vmName))
	deallocPoller, err := clients.vms.BeginDeallocate(ctx, sourceGroup, vmName, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start deallocation: %w", err)
	}
	if _, err := deallocPoller.PollUntilDone(ctx, nil); err != nil {
		return nil, fmt.Errorf("deallocation did not complete: %w", err)
	}

	logger.Info("Swapping OS disk", slog.String("disk", *repairedDisk.ID))
	vm.Properties.StorageProfile.OSDisk.ManagedDisk.ID = repairedDisk.ID
	vm.Properties.StorageProfile.OSDisk.Name = repairedDisk.Name
	swapPoller, err := clients.vms.BeginCreateOrUpdate(ctx, sourceGroup, vmName, vm.VirtualMachine, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start OS disk swap: %w", err)
	}
	if _, err := swapPoller.PollUntilDone(ctx, nil); err != nil {
		return nil, fmt.Errorf("OS disk swap did not complete: %w", err)
	}

	logger.Info("Starting source VM", slog.String("vm", vmName))
	startPoller, err := clients.vms.BeginStart(ctx, sourceGroup, vmName, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start VM: %w", err)
	}
	if _, err := startPoller.PollUntilDone(ctx, nil); err != nil {
		return nil, fmt.Errorf("VM start did not complete: %w", err)
	}

	logger.Info("Deleting repair resource group", slog.String("group", repairGroup))
	deletePoller, err := clients.groups.BeginDelete(ctx, repairGroup, nil)
	if err != nil {
		logger.Warn("Failed to start repair group deletion", slog.String("error", err.Error()))
	} else if _, err := deletePoller.PollUntilDone(ctx, nil); err != nil {
		logger.Warn("Repair group deletion did not complete", slog.String("error", err.Error()))
	}

	return &types.VMRepairState{
		SourceVMID:     *vm.ID,
		SourceVMName:   vmName,
		CopiedDiskID:   *repairedDisk.ID,
		RepairGroup:    repairGroup,
		SubscriptionID: subscription,
		SourceGroup:    sourceGroup,
		Location:       *vm.Location,
	}, nil
}
