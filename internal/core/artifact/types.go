package artifact

import "github.com/kirillkom/lite-ingest/internal/core/domain"

// Type is the canonical tag assigned to an artifact file by Classify.
type Type string

const (
	TypeUnknown              Type = "unknown"
	TypeCollectionSummary    Type = "collection_summary"
	TypeCollectionMetadata   Type = "collection_metadata"
	TypeUserAccounts         Type = "userAccounts"
	TypeProcesses            Type = "processes"
	TypeNetworkConnections   Type = "networkConnections"
	TypeSystemdServices      Type = "systemdServices"
	TypeAudit                Type = "audit"
	TypeAuthLogs             Type = "authLogs"
	TypeBrowsingHistoryData  Type = "browsingHistory_data"
	TypeBrowsingHistory      Type = "browsingHistory"
	TypeFirewallRules        Type = "firewallRules"
	TypeDpkgPackages         Type = "dpkgPackages"
	TypeInstalledPackages    Type = "installedPackages"
	TypeCronJobs             Type = "cronJobs"
	TypeSystemLogs           Type = "systemLogs"
	TypeFilesystemStats      Type = "filesystemStats"
	TypeFilesystemTypes      Type = "filesystemTypes"
	TypeFileSystem           Type = "fileSystem"
	TypeNetworkInterfaces    Type = "networkInterfaces"
	TypeCifsMounts           Type = "cifsMounts"
	TypeMountedFilesystems   Type = "mountedFilesystems"
	TypeDiskUsage            Type = "disk_usage"
	TypeEnvironmentVariables Type = "environmentVariables"
	TypeArpCache             Type = "arpCache"
	TypeArpTableRaw          Type = "arpTableRaw"
	TypeBlockDevices         Type = "blockDevices"
	TypeFdisk                Type = "fdisk"
	TypeBoot                 Type = "boot"
	TypeBtmpLogs             Type = "btmp_logs"
	TypeConnectionTracking   Type = "connectionTracking"
	TypeCPUInformation       Type = "cpuInformation"
	TypeCriticalFiles        Type = "criticalFiles"
	TypeDNSCache             Type = "dnsCache"
	TypeKernelModules        Type = "kernel_modules"
	TypeGroupAccounts        Type = "groupAccounts"
	TypeHomeDirectories      Type = "homeDirectories"
)

func (t Type) String() string { return string(t) }

// Spec is everything the pipeline needs to know about one artifact type,
// resolved once after classification.
type Spec struct {
	Type    Type     `json:"type" yaml:"-"`
	Table   string   `json:"table"`
	Fields  []string `json:"fields,omitempty"`
	RawData bool     `json:"raw_data"`
	parse   parser
}

// ParseRaw runs the line parser bound to the type. Types without a parser
// yield no records.
func (s Spec) ParseRaw(stdout string) []*domain.Record {
	if s.parse == nil {
		return []*domain.Record{}
	}
	return s.parse(stdout)
}
