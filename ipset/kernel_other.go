//go:build !linux

package ipset

import (
	"github.com/am6737/zenset/api"
	"github.com/am6737/zenset/transport/packet"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var errNoKernel = errors.New("kernel ipset is only available on linux")

// Kernel is unavailable outside linux, see kernel_linux.go.
type Kernel struct{}

func NewKernel(logger *logrus.Logger) (*Kernel, error) {
	return nil, errNoKernel
}

func (k *Kernel) Resolve(name string) (api.SetID, error) {
	return api.InvalidSetID, errNoKernel
}

func (k *Kernel) Release(id api.SetID) {}

func (k *Kernel) Name(id api.SetID) (string, error) {
	return "", errNoKernel
}

func (k *Kernel) Test(id api.SetID, key packet.Key, opt *api.QueryOptions) (bool, error) {
	return false, errNoKernel
}

func (k *Kernel) Counters(id api.SetID, key packet.Key, opt *api.QueryOptions) (api.Counters, error) {
	return api.Counters{}, errNoKernel
}
