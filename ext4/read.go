package ext4

import "math"

// readRange fills buf with file bytes starting at off. The caller has
// already clamped the range to the file size. Runs of physically
// contiguous blocks collapse into a single device read, and holes are
// zero filled without touching the device.
func (p *Partition) readRange(ino *Inode, off uint64, buf []byte) error {
	blockSize := uint64(p.blockSize)

	for len(buf) > 0 {
		logical := off / blockSize
		within := off % blockSize
		if logical > math.MaxUint32 {
			return errCorruptf("logical block %d beyond the 32-bit file map", logical)
		}

		physical, mapped, err := p.mapBlock(ino, uint32(logical))
		if err != nil {
			return err
		}

		n := blockSize - within
		run := uint64(1)
		for n < uint64(len(buf)) && logical+run <= math.MaxUint32 {
			nextPhysical, nextMapped, err := p.mapBlock(ino, uint32(logical+run))
			if err != nil {
				return err
			}
			if nextMapped != mapped {
				break
			}
			if mapped && nextPhysical != physical+run {
				break
			}
			run++
			n += blockSize
		}
		if n > uint64(len(buf)) {
			n = uint64(len(buf))
		}

		if mapped {
			if err := p.dev.ReadAt(buf[:n], int64(physical*blockSize+within)); err != nil {
				return err
			}
		} else {
			zero(buf[:n])
		}

		buf = buf[n:]
		off += n
	}
	return nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
