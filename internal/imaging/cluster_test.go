package imaging_test

import (
	"testing"

	"gradeflow/internal/imaging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func img(name, dhash, ahash string) *imaging.Image {
	return &imaging.Image{RelativePath: name, DHash: dhash, AHash: ahash}
}

func TestClusterNearIdenticalLetterheads(t *testing.T) {
	// Three copies of the same banner within tolerance, one distinct photo.
	images := []*imaging.Image{
		img("page_1_img_1.png", "aa00aa00aa00aa00", "1100110011001100"),
		img("page_2_img_1.png", "aa00aa00aa00aa01", "1100110011001101"),
		img("page_3_img_1.png", "aa00aa00aa00aa03", "1100110011001103"),
		img("page_3_img_2.png", "ffffffffffffffff", "00000000000000ff"),
	}

	clusters := imaging.NewClusterer(4, 6, 3).Cluster(images)

	require.Len(t, clusters, 2)
	assert.Equal(t, 3, clusters[0].Size())
	assert.Equal(t, 1, clusters[1].Size())

	assert.True(t, images[0].IsDuplicate)
	assert.True(t, images[1].IsDuplicate)
	assert.True(t, images[2].IsDuplicate)
	assert.False(t, images[3].IsDuplicate)
}

func TestClusterBelowMinimumSizeIsNotDuplicate(t *testing.T) {
	images := []*imaging.Image{
		img("a.png", "aa00aa00aa00aa00", "1100110011001100"),
		img("b.png", "aa00aa00aa00aa00", "1100110011001100"),
	}

	clusters := imaging.NewClusterer(4, 6, 3).Cluster(images)

	require.Len(t, clusters, 1)
	assert.Equal(t, 2, clusters[0].Size())
	assert.False(t, images[0].IsDuplicate)
	assert.False(t, images[1].IsDuplicate)
}

func TestClusterRequiresBothDistances(t *testing.T) {
	// dhash identical but ahash far apart: must not cluster.
	images := []*imaging.Image{
		img("a.png", "aa00aa00aa00aa00", "0000000000000000"),
		img("b.png", "aa00aa00aa00aa00", "ffffffffffffffff"),
	}

	clusters := imaging.NewClusterer(4, 6, 2).Cluster(images)
	assert.Len(t, clusters, 2)
}

func TestClusterIgnoresMissingFingerprints(t *testing.T) {
	images := []*imaging.Image{
		img("a.png", "aa00aa00aa00aa00", "1100110011001100"),
		img("broken.png", "", ""),
		img("c.png", "aa00aa00aa00aa00", "1100110011001100"),
	}

	clusters := imaging.NewClusterer(4, 6, 2).Cluster(images)

	require.Len(t, clusters, 2)
	assert.Equal(t, 2, clusters[0].Size())
	assert.False(t, images[1].IsDuplicate)
}

func TestClusterIdenticalFingerprintsIsOrderIndependent(t *testing.T) {
	build := func() []*imaging.Image {
		return []*imaging.Image{
			img("a.png", "1234123412341234", "abcdabcdabcdabcd"),
			img("b.png", "1234123412341234", "abcdabcdabcdabcd"),
			img("c.png", "1234123412341234", "abcdabcdabcdabcd"),
			img("d.png", "0000000000000000", "0000000000000000"),
		}
	}

	forward := build()
	imaging.NewClusterer(0, 0, 3).Cluster(forward)

	reversed := build()
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	imaging.NewClusterer(0, 0, 3).Cluster(reversed)

	for i := range forward {
		assert.Equal(t, forward[i].IsDuplicate, reversed[len(reversed)-1-i].IsDuplicate)
	}
}
