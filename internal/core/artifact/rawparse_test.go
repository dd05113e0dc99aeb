package artifact

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

var rawTypes = []Type{
	TypeArpTableRaw, TypeBlockDevices, TypeConnectionTracking, TypeDiskUsage,
	TypeFdisk, TypeFilesystemStats, TypeFilesystemTypes,
}

func TestParseRawEmptyInput(t *testing.T) {
	for _, typ := range rawTypes {
		for _, in := range []string{"", "   \n\n  "} {
			got := ParseRaw(in, typ)
			if got == nil || len(got) != 0 {
				t.Fatalf("%s: expected empty non-nil result for %q, got %v", typ, in, got)
			}
		}
	}
	if got := ParseRaw("a b c d e f", TypeProcesses); len(got) != 0 {
		t.Fatalf("types without a parser must give no records")
	}
}

func TestParseRawSkipsSingleTokenGarbage(t *testing.T) {
	garbage := "foo\nbar\nbaz"
	for _, typ := range rawTypes {
		got := ParseRaw(garbage, typ)
		switch typ {
		case TypeConnectionTracking, TypeFilesystemTypes:
			// one token is a complete line in these formats
			if len(got) != 3 {
				t.Fatalf("%s: expected one record per line, got %d", typ, len(got))
			}
		default:
			if len(got) != 0 {
				t.Fatalf("%s: expected no records from garbage, got %d", typ, len(got))
			}
		}
	}
}

func TestParseHumanSize(t *testing.T) {
	cases := map[string]int64{
		"1K":   1024,
		"1M":   1048576,
		"1G":   1073741824,
		"1.5G": 1610612736,
		"0":    0,
		"":     0,
		"512":  0,
		"xG":   0,
		"2T":   0,
	}
	for in, want := range cases {
		if got := ParseHumanSize(in); got != want {
			t.Fatalf("ParseHumanSize(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseDiskUsage(t *testing.T) {
	out := ParseRaw("Filesystem 1K-blocks Used Available Use% Mounted on\n/dev/sda1 1024 512 512 50% /mnt\n", TypeDiskUsage)
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out))
	}
	want := map[string]any{
		"filesystem":      "/dev/sda1",
		"size_bytes":      int64(1048576),
		"used_bytes":      int64(524288),
		"available_bytes": int64(524288),
		"use_percent":     int64(50),
		"mounted_on":      "/mnt",
	}
	if diff := cmp.Diff(want, out[0].Map()); diff != "" {
		t.Fatalf("disk usage mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDiskUsageMountPointWithSpaces(t *testing.T) {
	out := ParseRaw("tmpfs 100 x 1 n/a% /media/usb stick", TypeDiskUsage)
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out))
	}
	rec := out[0].Map()
	if rec["mounted_on"] != "/media/usb stick" || rec["used_bytes"] != int64(0) || rec["use_percent"] != int64(0) {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestParseFilesystemStatsKeepsRawTokens(t *testing.T) {
	out := ParseRaw("Filesystem Inodes IUsed IFree IUse% Mounted on\nudev 1000 10 990 1% /dev\n", TypeFilesystemStats)
	want := map[string]any{
		"filesystem":   "udev",
		"inodes":       "1000",
		"iused":        "10",
		"ifree":        "990",
		"iuse_percent": "1%",
		"mounted_on":   "/dev",
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out))
	}
	if diff := cmp.Diff(want, out[0].Map()); diff != "" {
		t.Fatalf("df -i mismatch (-want +got):\n%s", diff)
	}
}

func TestParseArpTable(t *testing.T) {
	stdout := "Address HWtype HWaddress Flags Mask Iface\n" +
		"192.168.1.1 ether aa:bb:cc:dd:ee:ff C * eth0\n" +
		"192.168.1.9 (incomplete) eth0\n"
	out := ParseRaw(stdout, TypeArpTableRaw)
	if len(out) != 1 {
		t.Fatalf("expected short line to be skipped, got %d records", len(out))
	}
	if diff := cmp.Diff([]string{"address", "hwtype", "hwaddress", "flags", "mask", "iface"}, out[0].Keys()); diff != "" {
		t.Fatalf("column order mismatch (-want +got):\n%s", diff)
	}
	if v, _ := out[0].Get("iface"); v != "eth0" {
		t.Fatalf("unexpected iface %v", v)
	}
}

func TestParseBlockDevices(t *testing.T) {
	stdout := "NAME MAJ:MIN RM SIZE RO TYPE MOUNTPOINT\n" +
		"sda 8:0 0 20G 0 disk\n" +
		"sda1 8:1 0 512M 0 part /boot\n"
	out := ParseRaw(stdout, TypeBlockDevices)
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	want := map[string]any{
		"device_name": "sda1",
		"size_bytes":  int64(536870912),
		"device_type": "part",
		"mount_point": "/boot",
		"filesystem":  "",
		"model":       "",
	}
	if diff := cmp.Diff(want, out[1].Map()); diff != "" {
		t.Fatalf("lsblk mismatch (-want +got):\n%s", diff)
	}
	if v, _ := out[0].Get("mount_point"); v != "" {
		t.Fatalf("expected empty mount point, got %v", v)
	}
}

func TestParseConnectionTrackingKeepsLines(t *testing.T) {
	out := ParseRaw("  tcp 6 431999 ESTABLISHED src=10.0.0.2  \n\nudp 17 29 src=10.0.0.3\n", TypeConnectionTracking)
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	if v, _ := out[0].Get("raw_line"); v != "tcp 6 431999 ESTABLISHED src=10.0.0.2" {
		t.Fatalf("unexpected raw line %q", v)
	}
}

func TestParseFilesystemTypes(t *testing.T) {
	out := ParseRaw("nodev\tsysfs\n\text4\nnodev\n", TypeFilesystemTypes)
	want := []map[string]any{
		{"filesystem_type": "sysfs", "nodev": true},
		{"filesystem_type": "ext4", "nodev": false},
		{"filesystem_type": "", "nodev": true},
	}
	got := make([]map[string]any, 0, len(out))
	for _, rec := range out {
		got = append(got, rec.Map())
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("filesystem types mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFdiskDenormalizesDiskIntoPartitions(t *testing.T) {
	stdout := `Disk /dev/sda: 20 GiB, 21474836480 bytes, 41943040 sectors
Units: sectors of 1 * 512 = 512 bytes
Sector size (logical/physical): 512 bytes / 512 bytes
Disklabel type: dos
Disk identifier: 0x1a2b3c4d

Device     Boot   Start      End  Sectors  Size Id Type
/dev/sda1  *       2048  1050623  1048576  512M 83 Linux
/dev/sda2       1050624 41943039 40892416 19.5G 8e Linux LVM

Disk /dev/sdb: 1 GiB, 1073741824 bytes, 2097152 sectors
/dev/sdb1 2048 2097151 2095104 1023M 83 Linux`
	out := ParseRaw(stdout, TypeFdisk)
	if len(out) != 3 {
		t.Fatalf("expected 3 partitions, got %d", len(out))
	}

	first := out[0].Map()
	want := map[string]any{
		"disk_path":       "/dev/sda",
		"disk_size":       "20 GiB",
		"disk_model":      "",
		"sector_size":     "512 bytes / 512 bytes",
		"disklabel_type":  "dos",
		"disk_identifier": "0x1a2b3c4d",
		"device":          "/dev/sda1",
		"boot_flag":       true,
		"start_sector":    int64(2048),
		"end_sector":      int64(1050623),
		"sectors":         int64(1048576),
		"size":            "512M",
		"partition_id":    "83",
		"partition_type":  "Linux",
	}
	if diff := cmp.Diff(want, first); diff != "" {
		t.Fatalf("first partition mismatch (-want +got):\n%s", diff)
	}

	second := out[1].Map()
	if second["boot_flag"] != false || second["partition_type"] != "Linux LVM" || second["start_sector"] != int64(1050624) {
		t.Fatalf("unexpected second partition %v", second)
	}

	third := out[2].Map()
	if third["disk_path"] != "/dev/sdb" || third["disklabel_type"] != "" {
		t.Fatalf("expected sdb partition to carry only sdb metadata, got %v", third)
	}
}
