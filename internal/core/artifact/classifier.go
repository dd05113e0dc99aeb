package artifact

import "strings"

type filenameRule struct {
	anyOf  []string
	allOf  []string
	result Type
}

func (r filenameRule) match(name string) bool {
	for _, s := range r.allOf {
		if !strings.Contains(name, s) {
			return false
		}
	}
	if len(r.anyOf) == 0 {
		return len(r.allOf) > 0
	}
	for _, s := range r.anyOf {
		if strings.Contains(name, s) {
			return true
		}
	}
	return false
}

// Order matters: many substrings overlap ("systemd" vs "system"+"log",
// "auth"+"log" vs "audit", "packages" vs "dpkg"). The narrower stats/types and
// cifs rules precede "filesystem" and "mount", which would otherwise shadow
// them; every other rule sits after the broader rules it could collide with.
var filenameRules = []filenameRule{
	{anyOf: []string{"collection_summary"}, result: TypeCollectionSummary},
	{anyOf: []string{"collection_metadata"}, result: TypeCollectionMetadata},
	{anyOf: []string{"useraccounts", "user_accounts"}, result: TypeUserAccounts},
	{anyOf: []string{"processes"}, result: TypeProcesses},
	{allOf: []string{"network", "connections"}, result: TypeNetworkConnections},
	{anyOf: []string{"systemd", "services"}, result: TypeSystemdServices},
	{allOf: []string{"auth", "log"}, result: TypeAuthLogs},
	{anyOf: []string{"audit"}, result: TypeAudit},
	{anyOf: []string{"browsinghistory_data"}, result: TypeBrowsingHistoryData},
	{anyOf: []string{"browsing", "history"}, result: TypeBrowsingHistory},
	{anyOf: []string{"firewall"}, result: TypeFirewallRules},
	{anyOf: []string{"packages"}, result: TypeInstalledPackages},
	{anyOf: []string{"dpkg"}, result: TypeDpkgPackages},
	{anyOf: []string{"cron"}, result: TypeCronJobs},
	{allOf: []string{"system", "log"}, result: TypeSystemLogs},
	{anyOf: []string{"filesystemstats", "filesystem_stats"}, result: TypeFilesystemStats},
	{anyOf: []string{"filesystemtypes", "filesystem_types"}, result: TypeFilesystemTypes},
	{anyOf: []string{"filesystem", "file_system"}, result: TypeFileSystem},
	{anyOf: []string{"interface"}, result: TypeNetworkInterfaces},
	{anyOf: []string{"cifsmounts", "cifs_mounts"}, result: TypeCifsMounts},
	{anyOf: []string{"mount"}, result: TypeMountedFilesystems},
	{anyOf: []string{"environment", "env"}, result: TypeEnvironmentVariables},
	{anyOf: []string{"arpcache", "arp_cache"}, result: TypeArpCache},
	{anyOf: []string{"blockdevices", "block_devices", "lsblk"}, result: TypeBlockDevices},
	{allOf: []string{"boot", ".json"}, result: TypeBoot},
	{allOf: []string{"btmp", "log"}, result: TypeBtmpLogs},
	{anyOf: []string{"connectiontracking", "connection_tracking", "conntrack"}, result: TypeConnectionTracking},
	{anyOf: []string{"cpuinformation", "cpu_information", "cpu"}, result: TypeCPUInformation},
	{anyOf: []string{"criticalfiles", "critical_files"}, result: TypeCriticalFiles},
	{anyOf: []string{"disk_usage", "diskusage"}, result: TypeDiskUsage},
	{anyOf: []string{"arp"}, result: TypeArpTableRaw},
	{anyOf: []string{"fdisk"}, result: TypeFdisk},
	{anyOf: []string{"dns"}, result: TypeDNSCache},
	{anyOf: []string{"kernel_modules", "kernelmodules", "lsmod"}, result: TypeKernelModules},
	{anyOf: []string{"groupaccounts", "group_accounts"}, result: TypeGroupAccounts},
	{anyOf: []string{"homedirectories", "home_directories"}, result: TypeHomeDirectories},
}

// Classify maps a filename and its decoded JSON payload to an artifact type.
// The filename wins; the payload shape is only probed when no filename rule
// matches. It never fails: anything unrecognised is TypeUnknown.
func Classify(filename string, data any) Type {
	name := strings.ToLower(filename)
	for _, r := range filenameRules {
		if r.match(name) {
			return r.result
		}
	}
	return classifyShape(data)
}

func classifyShape(data any) Type {
	switch v := data.(type) {
	case map[string]any:
		if _, ok := v["collection_info"]; ok {
			return TypeCollectionSummary
		}
		_, v4 := v["iptables"]
		_, v6 := v["ip6tables"]
		if v4 || v6 {
			return TypeFirewallRules
		}
	case []any:
		if len(v) == 0 {
			return TypeUnknown
		}
		first, ok := v[0].(map[string]any)
		if !ok {
			return TypeUnknown
		}
		has := func(k string) bool {
			_, ok := first[k]
			return ok
		}
		switch {
		case has("username") || has("uid"):
			return TypeUserAccounts
		case has("pid") || has("command"):
			return TypeProcesses
		case has("url") && has("title"):
			return TypeBrowsingHistory
		case has("local_address") || has("remote_address"):
			return TypeNetworkConnections
		case has("service_name") || has("unit_name"):
			return TypeSystemdServices
		}
	}
	return TypeUnknown
}
