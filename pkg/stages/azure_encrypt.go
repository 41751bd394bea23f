package stages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute"
	"github.com/silverlining-sec/nimbus/internal/helpers"
	"github.com/silverlining-sec/nimbus/internal/logs"
	"github.com/silverlining-sec/nimbus/pkg/options"
	"github.com/silverlining-sec/nimbus/pkg/types"
)

// AzureVMListStage lists the VMs in each incoming subscription, scoped to the
// resource-group option when one is set.
func AzureVMListStage(ctx context.Context, opts []*types.Option, in <-chan string) <-chan types.ResourceInfo {
	logger := logs.NewStageLogger(ctx, opts, "AzureVMListStage")
	out := make(chan types.ResourceInfo)

	resourceGroup := options.GetValue(options.AzureResourceGroupOpt.Name, opts)
	vmName := options.GetValue(options.AzureVMNameOpt.Name, opts)

	go func() {
		defer close(out)

		cred, err := helpers.GetAzureCredentials()
		if err != nil {
			logger.Error("Failed to get Azure credential", slog.String("error", err.Error()))
			return
		}

		for subscription := range in {
			client, err := armcompute.NewVirtualMachinesClient(subscription, cred, nil)
			if err != nil {
				logger.Error(fmt.Sprintf("Failed to create VM client: %v", err))
				continue
			}

			if vmName != "" {
				vm, err := client.Get(ctx, resourceGroup, vmName, nil)
				if err != nil {
					logger.Error("Failed to get VM",
						slog.String("vm", vmName),
						slog.String("error", err.Error()))
					continue
				}
				emitVM(ctx, out, vm.VirtualMachine, subscription)
				continue
			}

			if resourceGroup != "" {
				pager := client.NewListPager(resourceGroup, nil)
				drainVMPager(ctx, logger, out, subscription, pager.More, func() ([]*armcompute.VirtualMachine, error) {
					page, err := pager.NextPage(ctx)
					return page.Value, err
				})
			} else {
				pager := client.NewListAllPager(nil)
				drainVMPager(ctx, logger, out, subscription, pager.More, func() ([]*armcompute.VirtualMachine, error) {
					page, err := pager.NextPage(ctx)
					return page.Value, err
				})
			}
		}
	}()

	return out
}

func drainVMPager(ctx context.Context, logger *slog.Logger, out chan<- types.ResourceInfo, subscription string, more func() bool, next func() ([]*armcompute.VirtualMachine, error)) {
	firstPage := true
	for more() {
		vms, err := next()
		if err != nil {
			if firstPage && helpers.IsDeniedError(err) {
				logger.Info("No access to subscription", slog.String("subscription", subscription))
				select {
				case out <- types.ResourceInfo{Subscription: subscription, Type: "NO_ACCESS"}:
				case <-ctx.Done():
				}
				return
			}
			logger.Error("Failed to list VMs", slog.String("error", err.Error()))
			return
		}
		firstPage = false

		for _, vm := range vms {
			if vm == nil {
				continue
			}
			emitVM(ctx, out, *vm, subscription)
		}
	}
}

func emitVM(ctx context.Context, out chan<- types.ResourceInfo, vm armcompute.VirtualMachine, subscription string) {
	if vm.ID == nil || vm.Name == nil || vm.Location == nil {
		return
	}

	info := types.ResourceInfo{
		ID:            *vm.ID,
		Name:          *vm.Name,
		Type:          "Microsoft.Compute/virtualMachines",
		Location:      *vm.Location,
		ResourceGroup: helpers.ExtractResourceGroup(*vm.ID),
		Subscription:  subscription,
		Properties:    make(map[string]interface{}),
	}
	if vm.Properties != nil && vm.Properties.HardwareProfile != nil && vm.Properties.HardwareProfile.VMSize != nil {
		info.Properties["vmSize"] = string(*vm.Properties.HardwareProfile.VMSize)
	}

	select {
	case out <- info:
	case <-ctx.Done():
	}
}

// AzureEncryptionAtHostStage enables encryption-at-host on each incoming VM:
// verify the size supports it, deallocate if running, patch the security
// profile, and restore the prior power state.
func AzureEncryptionAtHostStage(ctx context.Context, opts []*types.Option, in <-chan types.ResourceInfo) <-chan types.HostEncryptionResult {
	logger := logs.NewStageLogger(ctx, opts, "AzureEncryptionAtHostStage")
	out := make(chan types.HostEncryptionResult)

	go func() {
		defer close(out)

		cred, err := helpers.GetAzureCredentials()
		if err != nil {
			logger.Error("Failed to get Azure credential", slog.String("error", err.Error()))
			return
		}

		// One capability cache per run: size -> supported.
		supportCache := make(map[string]bool)
		var clients struct {
			vms  *armcompute.VirtualMachinesClient
			skus *armcompute.ResourceSKUsClient
			sub  string
		}

		for resource := range in {
			if resource.Type == "NO_ACCESS" {
				continue
			}

			if clients.vms == nil || clients.sub != resource.Subscription {
				vms, err := armcompute.NewVirtualMachinesClient(resource.Subscription, cred, nil)
				if err != nil {
					logger.Error(fmt.Sprintf("Failed to create VM client: %v", err))
					continue
				}
				skus, err := armcompute.NewResourceSKUsClient(resource.Subscription, cred, nil)
				if err != nil {
					logger.Error(fmt.Sprintf("Failed to create SKU client: %v", err))
					continue
				}
				clients.vms, clients.skus, clients.sub = vms, skus, resource.Subscription
			}

			result := enableEncryptionAtHost(ctx, logger, clients.vms, clients.skus, supportCache, resource)

			select {
			case out <- result:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func enableEncryptionAtHost(ctx context.Context, logger *slog.Logger, vms *armcompute.VirtualMachinesClient, skus *armcompute.ResourceSKUsClient, supportCache map[string]bool, resource types.ResourceInfo) types.HostEncryptionResult {
	result := types.HostEncryptionResult{
		VMID:   resource.ID,
		VMName: resource.Name,
	}

	vm, err := vms.Get(ctx, resource.ResourceGroup, resource.Name, &armcompute.VirtualMachinesClientGetOptions{
		Expand: to.Ptr(armcompute.InstanceViewTypesInstanceView),
	})
	if err != nil {
		result.Status = "ERROR"
		result.Detail = fmt.Sprintf("failed to get VM: %v", err)
		return result
	}

	size := ""
	if vm.Properties != nil && vm.Properties.HardwareProfile != nil && vm.Properties.HardwareProfile.VMSize != nil {
		size = string(*vm.Properties.HardwareProfile.VMSize)
	}
	result.Size = size

	// Already enabled is a no-op, never a power cycle.
	if vm.Properties != nil && vm.Properties.SecurityProfile != nil &&
		vm.Properties.SecurityProfile.EncryptionAtHost != nil &&
		*vm.Properties.SecurityProfile.EncryptionAtHost {
		result.Status = "ALREADY_ENABLED"
		return result
	}

	supported, err := sizeSupportsEncryptionAtHost(ctx, skus, supportCache, size, resource.Location)
	if err != nil {
		result.Status = "ERROR"
		result.Detail = fmt.Sprintf("capability lookup failed: %v", err)
		return result
	}
	if !supported {
		result.Status = "SKIPPED"
		result.Detail = fmt.Sprintf("size %s does not support encryption at host", size)
		logger.Warn("Size does not support encryption at host",
			slog.String("vm", resource.Name), slog.String("size", size))
		return result
	}

	wasRunning := vmIsRunning(vm.VirtualMachine)
	if wasRunning {
		logger.Info("Deallocating VM", slog.String("vm", resource.Name))
		poller, err := vms.BeginDeallocate(ctx, resource.ResourceGroup, resource.Name, nil)
		if err == nil {
			_, err = poller.PollUntilDone(ctx, nil)
		}
		if err != nil {
			result.Status = "ERROR"
			result.Detail = fmt.Sprintf("deallocation failed: %v", err)
			return result
		}
		result.WasCycle = true
	}

	logger.Info("Enabling encryption at host", slog.String("vm", resource.Name))
	update := armcompute.VirtualMachineUpdate{
		Properties: &armcompute.VirtualMachineProperties{
			SecurityProfile: &armcompute.SecurityProfile{
				EncryptionAtHost: to.Ptr(true),
			},
		},
	}
	err = applyVMUpdate(ctx, vms, resource.ResourceGroup, resource.Name, update)
	if helpers.IsConflictError(err) {
		// Concurrent platform operations clear quickly. One more round.
		select {
		case <-time.After(helpers.DefaultRetryPolicy.Interval):
			err = applyVMUpdate(ctx, vms, resource.ResourceGroup, resource.Name, update)
		case <-ctx.Done():
			err = ctx.Err()
		}
	}
	if err != nil {
		result.Status = "ERROR"
		result.Detail = fmt.Sprintf("update failed: %v", err)
		return result
	}

	if wasRunning {
		logger.Info("Starting VM", slog.String("vm", resource.Name))
		poller, err := vms.BeginStart(ctx, resource.ResourceGroup, resource.Name, nil)
		if err == nil {
			_, err = poller.PollUntilDone(ctx, nil)
		}
		if err != nil {
			result.Status = "ENABLED_NOT_RESTARTED"
			result.Detail = fmt.Sprintf("encryption enabled but VM did not restart: %v", err)
			return result
		}
	}

	result.Status = "ENABLED"
	return result
}

func applyVMUpdate(ctx context.Context, vms *armcompute.VirtualMachinesClient, resourceGroup, name string, update armcompute.VirtualMachineUpdate) error {
	poller, err := vms.BeginUpdate(ctx, resourceGroup, name, update, nil)
	if err != nil {
		return err
	}
	_, err = poller.PollUntilDone(ctx, nil)
	return err
}

func sizeSupportsEncryptionAtHost(ctx context.Context, skus *armcompute.ResourceSKUsClient, cache map[string]bool, size, location string) (bool, error) {
	if size == "" {
		return false, nil
	}
	if supported, ok := cache[size]; ok {
		return supported, nil
	}

	pager := skus.NewListPager(&armcompute.ResourceSKUsClientListOptions{
		Filter: to.Ptr(fmt.Sprintf("location eq '%s'", location)),
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return false, err
		}
		for _, sku := range page.Value {
			if sku.Name == nil || sku.ResourceType == nil || !strings.EqualFold(*sku.ResourceType, "virtualMachines") {
				continue
			}
			supported := false
			for _, capability := range sku.Capabilities {
				if capability.Name != nil && *capability.Name == "EncryptionAtHostSupported" &&
					capability.Value != nil && strings.EqualFold(*capability.Value, "True") {
					supported = true
					break
				}
			}
			cache[*sku.Name] = supported
		}
	}

	return cache[size], nil
}
