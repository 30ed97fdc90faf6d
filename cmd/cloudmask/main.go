/*
Copyright © 2017 the CloudMask authors.
This file is part of CloudMask.

CloudMask is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

CloudMask is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with CloudMask.  If not, see <http://www.gnu.org/licenses/>.
*/

// Command cloudmask is a command-line interface for cloud, shadow,
// and terrain masking of satellite imagery.
package main

import (
	"fmt"
	"os"

	"github.com/spatialmodel/cloudmask/cloudmaskutil"
)

func main() {
	if err := cloudmaskutil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
