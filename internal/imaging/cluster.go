package imaging

import (
	"log/slog"
	"sort"
)

// Cluster groups mutually similar images. The representative is the first
// member; similarity of later candidates is always judged against it.
type Cluster struct {
	Images []*Image
}

func (c *Cluster) Representative() *Image {
	return c.Images[0]
}

func (c *Cluster) Size() int {
	return len(c.Images)
}

// Clusterer groups images by fingerprint distance and flags clusters large
// enough to be repeated non-content imagery (letterheads, banners, logos).
// False positives are accepted as the cost of suppressing repeats that
// inflate token cost.
type Clusterer struct {
	dhashMaxDistance int
	ahashMaxDistance int
	minClusterSize   int
}

func NewClusterer(dhashMaxDistance, ahashMaxDistance, minClusterSize int) *Clusterer {
	return &Clusterer{
		dhashMaxDistance: dhashMaxDistance,
		ahashMaxDistance: ahashMaxDistance,
		minClusterSize:   minClusterSize,
	}
}

// Cluster assigns each image to the first existing cluster whose
// representative it resembles, or starts a new one. Every member of a
// cluster reaching the minimum size is marked duplicate. Clusters are
// returned sorted by descending size.
func (c *Clusterer) Cluster(images []*Image) []*Cluster {
	var clusters []*Cluster

	for _, img := range images {
		var matched *Cluster
		for _, cluster := range clusters {
			if c.similar(img, cluster.Representative()) {
				matched = cluster
				break
			}
		}
		if matched == nil {
			clusters = append(clusters, &Cluster{Images: []*Image{img}})
		} else {
			matched.Images = append(matched.Images, img)
		}
	}

	duplicates := 0
	for _, cluster := range clusters {
		if cluster.Size() < c.minClusterSize {
			continue
		}
		for _, img := range cluster.Images {
			img.IsDuplicate = true
			duplicates++
		}
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Size() > clusters[j].Size()
	})

	slog.Info("image clustering finished",
		"images", len(images), "clusters", len(clusters), "duplicates", duplicates)
	return clusters
}

// similar requires both fingerprint distances to hold; an image with either
// hash missing never matches anything.
func (c *Clusterer) similar(a, b *Image) bool {
	if a.DHash == "" || a.AHash == "" || b.DHash == "" || b.AHash == "" {
		return false
	}
	return HammingDistance(a.DHash, b.DHash) <= c.dhashMaxDistance &&
		HammingDistance(a.AHash, b.AHash) <= c.ahashMaxDistance
}
