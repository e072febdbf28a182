package drivecore

// VolumeSize reports the host-facing total/free capacity pair for the
// volume_size callback. Since the backing Chunk Store is content-addressed
// and effectively unbounded, this reports a large sentinel total with free
// space derived from any configured store capacity.
func (this *Core) VolumeSize() (total uint64, free uint64) {
	total = VolumeSentinelSize

	maxUsage := this.store.MaxDiskUsage()
	if maxUsage == 0 {
		free = total - VolumeReserve
		return total, free
	}

	used, err := this.store.CurrentDiskUsage()
	if err != nil || used >= maxUsage {
		return total, 0
	}

	return total, maxUsage - used
}

// VolumeLabel reports the host-facing volume name for the volume_label
// callback.
func (this *Core) VolumeLabel() string {
	return this.driveName
}

// VolumeSerialNumber reports the fixed volume id for the volume_id
// callback.
func (this *Core) VolumeSerialNumber() uint32 {
	return VolumeID
}
