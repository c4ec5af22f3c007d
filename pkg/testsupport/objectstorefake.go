package testsupport

import (
	"bytes"
	"io"
	"sort"
	"sync"
)

// ObjectStoreFake stores objects in memory. It's safe for concurrent use;
// variant pipelines archive in parallel.
type ObjectStoreFake struct {
	mu      sync.Mutex
	objects map[[2]string][]byte
}

func (osf *ObjectStoreFake) PutObject(
	bucket string,
	key string,
	data io.ReadSeeker,
) error {
	var b bytes.Buffer
	if _, err := io.Copy(&b, data); err != nil {
		return err
	}
	osf.mu.Lock()
	defer osf.mu.Unlock()
	if osf.objects == nil {
		osf.objects = map[[2]string][]byte{}
	}
	osf.objects[[2]string{bucket, key}] = b.Bytes()
	return nil
}

// Object returns the stored payload for `bucket`/`key`.
func (osf *ObjectStoreFake) Object(bucket, key string) ([]byte, bool) {
	osf.mu.Lock()
	defer osf.mu.Unlock()
	data, found := osf.objects[[2]string{bucket, key}]
	return data, found
}

// Keys returns the sorted keys stored under `bucket`.
func (osf *ObjectStoreFake) Keys(bucket string) []string {
	osf.mu.Lock()
	defer osf.mu.Unlock()
	var out []string
	for key := range osf.objects {
		if key[0] == bucket {
			out = append(out, key[1])
		}
	}
	sort.Strings(out)
	return out
}
