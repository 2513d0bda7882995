package fanout

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"voxrecipe/internal/fileutil"
)

var errTruncated = errors.New("missing trailing newline")

// ShardName returns the partition-suffixed form of name: feats.scp becomes
// feats.3.scp and a name without extension gains a plain .3 suffix.
func ShardName(name string, p int) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "." + strconv.Itoa(p) + ext
}

// Concat merges dir/<shard 1..nj> into dir/name in ascending partition order.
// Every shard is validated before the combined listing is written, so a bad
// shard never leaves a partial listing behind. The returned error joins one
// *ShardError per bad partition.
func Concat(dir, name string, nj int) error {
	bad, err := concat(dir, name, nj)
	if len(bad) > 0 {
		errs := make([]error, len(bad))
		for i, se := range bad {
			errs[i] = se
		}
		return errors.Join(errs...)
	}
	return err
}

func concat(dir, name string, nj int) ([]*ShardError, error) {
	shards := make([][]byte, 0, nj)
	var bad []*ShardError
	for p := 1; p <= nj; p++ {
		path := filepath.Join(dir, ShardName(name, p))
		data, err := readShard(path)
		if err != nil {
			bad = append(bad, &ShardError{Path: path, Partition: p, Err: err})
			continue
		}
		shards = append(shards, data)
	}
	if len(bad) > 0 {
		return bad, nil
	}

	return nil, fileutil.WriteAtomic(filepath.Join(dir, name), func(w io.Writer) error {
		for _, shard := range shards {
			if _, err := w.Write(shard); err != nil {
				return err
			}
		}
		return nil
	})
}

func readShard(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 && !bytes.HasSuffix(data, []byte("\n")) {
		return nil, errTruncated
	}
	return data, nil
}

// Concat merges listing name for every branch, in the directory dirOf
// returns for the branch name. It is only attempted when no sub-job failed.
// Every branch is validated even after another branch reports a bad shard,
// and each bad shard is folded back into the outcome as a failure of its
// partition. It returns the outcome error, nil only when every shard was sound.
func (o *Outcome) Concat(name string, dirOf func(branch string) string) error {
	if err := o.Err(); err != nil {
		return err
	}
	for i := range o.Branches {
		b := &o.Branches[i]
		err := Concat(dirOf(b.Name), name, len(b.Results))
		if err == nil {
			continue
		}
		bad := shardErrors(err)
		for _, se := range bad {
			b.Results[se.Partition-1].Err = se
		}
		if len(bad) == 0 {
			b.Results = append(b.Results, Result{Branch: b.Name, Partition: 0, Err: err})
		}
	}
	return o.Err()
}

func shardErrors(err error) []*ShardError {
	var out []*ShardError
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return nil
	}
	for _, e := range joined.Unwrap() {
		var se *ShardError
		if errors.As(e, &se) {
			out = append(out, se)
		}
	}
	return out
}
