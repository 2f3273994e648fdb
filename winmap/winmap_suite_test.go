package winmap_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestWinmap(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "winmap Suite")
}
