package artifact

import (
	"strconv"
	"strings"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
)

type parser func(stdout string) []*domain.Record

var rawParsers = map[Type]parser{
	TypeArpTableRaw:        parseArpTable,
	TypeBlockDevices:       parseBlockDevices,
	TypeConnectionTracking: parseConnectionTracking,
	TypeDiskUsage:          parseDiskUsage,
	TypeFdisk:              parseFdisk,
	TypeFilesystemStats:    parseFilesystemStats,
	TypeFilesystemTypes:    parseFilesystemTypes,
}

// ParseRaw turns command stdout into flat records using the line parser of
// t. Unknown types and empty input give an empty result. Lines that do not
// carry enough tokens are skipped.
func ParseRaw(stdout string, t Type) []*domain.Record {
	p, ok := rawParsers[t]
	if !ok {
		return []*domain.Record{}
	}
	return p(stdout)
}

// ParseHumanSize converts lsblk-style sizes ("512M", "1.5G") to bytes.
// Only K, M and G suffixes are understood; anything else is 0.
func ParseHumanSize(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0
	}
	var mult float64
	switch s[len(s)-1] {
	case 'K':
		mult = 1024
	case 'M':
		mult = 1024 * 1024
	case 'G':
		mult = 1024 * 1024 * 1024
	default:
		return 0
	}
	n, err := strconv.ParseFloat(s[:len(s)-1], 64)
	if err != nil {
		return 0
	}
	return int64(n * mult)
}

func splitLines(stdout string) []string {
	stdout = strings.TrimSpace(stdout)
	if stdout == "" {
		return nil
	}
	return strings.Split(stdout, "\n")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// digitsOrZero mirrors the "isdigit then int" convention of the collector
// output: signs, separators and overflow all fall back to 0.
func digitsOrZero(s string) int64 {
	if !isDigits(s) {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// arp: Address HWtype HWaddress Flags Mask Iface
func parseArpTable(stdout string) []*domain.Record {
	out := []*domain.Record{}
	for _, line := range splitLines(stdout) {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "Address") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 6 {
			continue
		}
		out = append(out, domain.NewRecord().
			Set("address", parts[0]).
			Set("hwtype", parts[1]).
			Set("hwaddress", parts[2]).
			Set("flags", parts[3]).
			Set("mask", parts[4]).
			Set("iface", parts[5]))
	}
	return out
}

// lsblk: NAME MAJ:MIN RM SIZE RO TYPE MOUNTPOINT
func parseBlockDevices(stdout string) []*domain.Record {
	out := []*domain.Record{}
	for _, line := range splitLines(stdout) {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "NAME") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 6 {
			continue
		}
		mountPoint := ""
		if len(parts) > 6 {
			mountPoint = parts[6]
		}
		out = append(out, domain.NewRecord().
			Set("device_name", parts[0]).
			Set("size_bytes", ParseHumanSize(parts[3])).
			Set("device_type", parts[5]).
			Set("mount_point", mountPoint).
			Set("filesystem", "").
			Set("model", ""))
	}
	return out
}

// Connection tracking lines vary too much between kernels to split reliably,
// so each one is kept verbatim.
func parseConnectionTracking(stdout string) []*domain.Record {
	out := []*domain.Record{}
	for _, line := range splitLines(stdout) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, domain.NewRecord().Set("raw_line", line))
	}
	return out
}

// df: Filesystem 1K-blocks Used Available Use% Mounted on
func parseDiskUsage(stdout string) []*domain.Record {
	out := []*domain.Record{}
	for _, line := range splitLines(stdout) {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "Filesystem") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 6 {
			continue
		}
		out = append(out, domain.NewRecord().
			Set("filesystem", parts[0]).
			Set("size_bytes", digitsOrZero(parts[1])*1024).
			Set("used_bytes", digitsOrZero(parts[2])*1024).
			Set("available_bytes", digitsOrZero(parts[3])*1024).
			Set("use_percent", digitsOrZero(strings.ReplaceAll(parts[4], "%", ""))).
			Set("mounted_on", strings.Join(parts[5:], " ")))
	}
	return out
}

// df -i: Filesystem Inodes IUsed IFree IUse% Mounted on. Inode counters stay
// text: df prints "-" for filesystems without inodes.
func parseFilesystemStats(stdout string) []*domain.Record {
	out := []*domain.Record{}
	for _, line := range splitLines(stdout) {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "Filesystem") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 6 {
			continue
		}
		out = append(out, domain.NewRecord().
			Set("filesystem", parts[0]).
			Set("inodes", parts[1]).
			Set("iused", parts[2]).
			Set("ifree", parts[3]).
			Set("iuse_percent", parts[4]).
			Set("mounted_on", strings.Join(parts[5:], " ")))
	}
	return out
}

// /proc/filesystems: "[nodev]\t<type>"
func parseFilesystemTypes(stdout string) []*domain.Record {
	out := []*domain.Record{}
	for _, line := range splitLines(stdout) {
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		if parts[0] == "nodev" {
			fsType := ""
			if len(parts) > 1 {
				fsType = parts[1]
			}
			out = append(out, domain.NewRecord().Set("filesystem_type", fsType).Set("nodev", true))
			continue
		}
		out = append(out, domain.NewRecord().Set("filesystem_type", parts[0]).Set("nodev", false))
	}
	return out
}

// fdisk -l prints a disk header block followed by its partition table. Each
// partition row is emitted merged with the metadata of the disk above it.
func parseFdisk(stdout string) []*domain.Record {
	out := []*domain.Record{}
	disk := domain.NewRecord()
	for _, line := range splitLines(stdout) {
		switch {
		case strings.HasPrefix(line, "Disk /"):
			parts := strings.Fields(line)
			if len(parts) < 4 {
				continue
			}
			disk = domain.NewRecord().
				Set("disk_path", strings.TrimRight(parts[1], ":")).
				Set("disk_size", parts[2]+" "+strings.TrimRight(parts[3], ",")).
				Set("disk_model", "").
				Set("sector_size", "").
				Set("disklabel_type", "").
				Set("disk_identifier", "")
		case strings.HasPrefix(line, "Sector size"):
			disk.Set("sector_size", afterColon(line))
		case strings.HasPrefix(line, "Disklabel type"):
			disk.Set("disklabel_type", afterColon(line))
		case strings.HasPrefix(line, "Disk identifier"):
			disk.Set("disk_identifier", afterColon(line))
		default:
			if rec, ok := parsePartition(line); ok {
				out = append(out, disk.Clone().Merge(rec))
			}
		}
	}
	return out
}

// /dev/sda1 * 2048 1050623 1048576 512M 83 Linux
func parsePartition(line string) (*domain.Record, bool) {
	if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "Device") || !strings.Contains(line, "/") {
		return nil, false
	}
	parts := strings.Fields(line)
	if len(parts) < 6 {
		return nil, false
	}
	boot := strings.Contains(parts[1], "*")
	i := 1
	if boot {
		i = 2
	}
	if len(parts) < i+5 {
		return nil, false
	}
	return domain.NewRecord().
		Set("device", parts[0]).
		Set("boot_flag", boot).
		Set("start_sector", digitsOrZero(parts[i])).
		Set("end_sector", digitsOrZero(parts[i+1])).
		Set("sectors", digitsOrZero(parts[i+2])).
		Set("size", parts[i+3]).
		Set("partition_id", parts[i+4]).
		Set("partition_type", strings.Join(parts[i+5:], " ")), true
}

func afterColon(line string) string {
	_, value, ok := strings.Cut(line, ":")
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}
