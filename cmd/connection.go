// Copyright © 2019 Marcus Mengs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"io"

	"github.com/mame82/cdcboot/host"
	"github.com/mame82/cdcboot/transport"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// openProgrammer connects to the configured device. The returned closer has
// to be closed by the caller.
func openProgrammer(opts ...host.Option) (*host.Programmer, io.Closer, error) {
	rwc, err := transport.Open(cfg.Host)
	if err != nil {
		return nil, nil, errors.Wrap(err, "can not open bootloader device")
	}
	opts = append([]host.Option{
		host.WithTimeout(cfg.Host.Timeout),
		host.WithLogger(log.WithField("component", "programmer")),
	}, opts...)
	return host.New(rwc, opts...), rwc, nil
}
