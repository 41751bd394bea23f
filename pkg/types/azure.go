package types

// ResourceInfo contains information about a single Azure resource
type ResourceInfo struct {
	ID            string
	Name          string
	Type          string
	Location      string
	ResourceGroup string
	Subscription  string
	Tags          map[string]string
	Properties    map[string]interface{}
}

// AzureResourceDetails contains detailed information about Azure resources
type AzureResourceDetails struct {
	SubscriptionID   string
	SubscriptionName string
	TenantID         string
	TenantName       string
	Resources        []ResourceInfo
}

// ResourceCount holds a per-type resource tally for one subscription
type ResourceCount struct {
	ResourceType string `json:"resourceType"`
	Count        int    `json:"count"`
}

// AzureEnvironmentDetails holds the summary view of one subscription
type AzureEnvironmentDetails struct {
	TenantName       string             `json:"tenantName"`
	TenantID         string             `json:"tenantId"`
	SubscriptionID   string             `json:"subscriptionId"`
	SubscriptionName string             `json:"subscriptionName"`
	State            string             `json:"state"`
	Tags             map[string]*string `json:"tags,omitempty"`
	Resources        []*ResourceCount   `json:"resources"`
}

// AppServiceInfo describes one App Service site and the security-relevant
// parts of its configuration.
type AppServiceInfo struct {
	Name            string `json:"name"`
	ResourceGroup   string `json:"resourceGroup"`
	Location        string `json:"location"`
	Kind            string `json:"kind,omitempty"`
	State           string `json:"state,omitempty"`
	DefaultHostName string `json:"defaultHostName,omitempty"`
	HTTPSOnly       bool   `json:"httpsOnly"`
	MinimumTLS      string `json:"minimumTls,omitempty"`
	RemoteDebugging bool   `json:"remoteDebugging"`
	FTPSState       string `json:"ftpsState,omitempty"`
}

// AutomationAccountInfo describes one Automation account and the names of
// its runbooks.
type AutomationAccountInfo struct {
	Name          string   `json:"name"`
	ResourceGroup string   `json:"resourceGroup"`
	Location      string   `json:"location"`
	State         string   `json:"state,omitempty"`
	Runbooks      []string `json:"runbooks,omitempty"`
}

// AzureServiceInventory groups the per-service inventory of one subscription.
type AzureServiceInventory struct {
	SubscriptionID     string                  `json:"subscriptionId"`
	SubscriptionName   string                  `json:"subscriptionName"`
	AppServices        []AppServiceInfo        `json:"appServices"`
	AutomationAccounts []AutomationAccountInfo `json:"automationAccounts"`
}

// VMRepairState describes a repair environment built for a broken VM. The
// fields are recoverable from resource names alone so restore needs no state
// file.
type VMRepairState struct {
	SourceVMID        string `json:"sourceVmId"`
	SourceVMName      string `json:"sourceVmName"`
	SourceOSDiskID    string `json:"sourceOsDiskId"`
	SnapshotID        string `json:"snapshotId"`
	CopiedDiskID      string `json:"copiedDiskId"`
	RepairVMID        string `json:"repairVmId"`
	RepairGroup       string `json:"repairGroup"`
	OSType            string `json:"osType"`
	SourceWasRunning  bool   `json:"sourceWasRunning"`
	SubscriptionID    string `json:"subscriptionId"`
	SourceGroup       string `json:"sourceGroup"`
	Location          string `json:"location"`
	CreatedAtUnixTime int64  `json:"createdAt"`
}

// BackupItemMigration records the outcome of moving one protected item
// between Recovery Services vaults.
type BackupItemMigration struct {
	ItemName      string `json:"itemName"`
	WorkloadType  string `json:"workloadType"`
	SourceVault   string `json:"sourceVault"`
	TargetVault   string `json:"targetVault"`
	PolicyName    string `json:"policyName"`
	Status        string `json:"status"`
	Detail        string `json:"detail,omitempty"`
	ContainerName string `json:"containerName,omitempty"`
}

// HostEncryptionResult records the outcome of enabling encryption-at-host on
// one VM.
type HostEncryptionResult struct {
	VMID     string `json:"vmId"`
	VMName   string `json:"vmName"`
	Size     string `json:"size"`
	Status   string `json:"status"`
	Detail   string `json:"detail,omitempty"`
	WasCycle bool   `json:"powerCycled"`
}
