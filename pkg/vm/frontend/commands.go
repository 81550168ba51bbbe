// Copyright The NRI Plugins Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package frontend

import (
	"fmt"
	"strings"

	units "github.com/docker/go-units"
	"github.com/urfave/cli"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/instrumentation/tracing"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/vm/methods"
)

// action wraps a command taking between lo and hi arguments, hi < 0
// meaning any number.
func (f *Frontend) action(lo, hi int, fn func(*cli.Context, *methods.Methods) error) func(*cli.Context) error {
	return func(c *cli.Context) error {
		if err := needArgs(c, lo, hi); err != nil {
			return err
		}
		m, err := f.getMethods()
		if err != nil {
			return err
		}

		parent := f.ctx
		ctx, span := tracing.StartSpan(parent, "vmc."+c.Command.Name)
		f.ctx = ctx
		err = fn(c, m)
		f.ctx = parent
		span.End(err)

		return err
	}
}

func vmTypeFlag() cli.Flag {
	return cli.StringFlag{
		Name:  "vm-type",
		Usage: "type of the VM: termina, borealis, bruschetta, baguette or pluginvm",
	}
}

func vmType(c *cli.Context) (methods.VmType, error) {
	return methods.ParseVmType(c.String("vm-type"))
}

// Commands returns the vmc subcommands.
func (f *Frontend) Commands() []cli.Command {
	return []cli.Command{
		f.startCommand(),
		{
			Name:      "stop",
			Usage:     "stop a VM",
			ArgsUsage: "<vm>",
			Flags:     []cli.Flag{vmTypeFlag()},
			Action: f.action(1, 1, func(c *cli.Context, m *methods.Methods) error {
				t, err := vmType(c)
				if err != nil {
					return err
				}
				return m.VmStop(f.ctx, c.Args()[0], t)
			}),
		},
		{
			Name:      "launch",
			Usage:     "start a VM and its default container, then open a shell",
			ArgsUsage: "[<vm> [<container>]]",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "no-shell", Usage: "don't open a shell"},
			},
			Action: f.action(0, 2, f.launch),
		},
		{
			Name:      "create",
			Usage:     "create the disk image of a VM",
			ArgsUsage: "<vm> [<source> [<removable media>]]",
			Flags: []cli.Flag{
				vmTypeFlag(),
				cli.StringFlag{Name: "size", Usage: "size of the disk, like 20G"},
				cli.StringFlag{Name: "image-type", Usage: "raw, qcow2 or auto"},
				cli.StringSliceFlag{Name: "param", Usage: "image creation parameter key=value"},
			},
			Action: f.action(1, 3, f.create),
		},
		{
			Name:      "create-extra-disk",
			Usage:     "create a raw disk image in the user's files",
			ArgsUsage: "<path>",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "size", Usage: "size of the disk, like 20G"},
				cli.StringFlag{Name: "removable-media", Usage: "removable media the path is relative to"},
			},
			Action: f.action(1, 1, func(c *cli.Context, m *methods.Methods) error {
				size, err := parseSize(c.String("size"))
				if err != nil {
					return usageError(c, "invalid --size: %v", err)
				}
				path, err := m.CreateExtraDisk(f.ctx, c.Args()[0], c.String("removable-media"), size)
				if err != nil {
					return err
				}
				f.printf("%s\n", path)
				return nil
			}),
		},
		{
			Name:      "adjust",
			Usage:     "adjust the configuration of a VM",
			ArgsUsage: "<vm> <operation> [<params>...]",
			Action: f.action(2, -1, func(c *cli.Context, m *methods.Methods) error {
				args := c.Args()
				return m.AdjustVm(f.ctx, args[0], args[1], args[2:])
			}),
		},
		{
			Name:      "destroy",
			Usage:     "destroy the disk image of a VM",
			ArgsUsage: "<vm>",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "y", Usage: "don't ask for confirmation"},
			},
			Action: f.action(1, 1, func(c *cli.Context, m *methods.Methods) error {
				vm := c.Args()[0]
				if !c.Bool("y") {
					if err := f.confirm(fmt.Sprintf("Destroy the disk image of %s?", vm)); err != nil {
						return err
					}
				}
				return m.DestroyDisk(f.ctx, vm)
			}),
		},
		{
			Name:      "disk-op-status",
			Usage:     "show the state of a disk operation",
			ArgsUsage: "<operation id>",
			Action: f.action(1, 1, func(c *cli.Context, m *methods.Methods) error {
				st, err := m.DiskOpStatus(f.ctx, c.Args()[0])
				if err != nil {
					return err
				}
				if st.Status == methods.DiskStatusInProgress {
					f.printf("Operation in progress: %d%% done\n", st.Progress)
				} else {
					f.printf("Operation completed successfully\n")
				}
				return nil
			}),
		},
		{
			Name:      "export",
			Usage:     "export the disk image of a VM",
			ArgsUsage: "<vm> <file> [<removable media>]",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "digest, d", Usage: "also write the SHA256 digest of the image to this file"},
				cli.BoolFlag{Name: "force, f", Usage: "export even if the VM is running"},
			},
			Action: f.action(2, 3, func(c *cli.Context, m *methods.Methods) error {
				args := c.Args()
				_, err := m.Export(f.ctx, &methods.ExportOptions{
					Name:       args[0],
					Path:       args[1],
					Media:      args.Get(2),
					DigestPath: c.String("digest"),
					Force:      c.Bool("force"),
					Wait:       true,
				}, f.progress)
				f.printf("\n")
				return err
			}),
		},
		{
			Name:      "import",
			Usage:     "import the disk image of a VM",
			ArgsUsage: "<vm> <file> [<removable media>]",
			Flags:     []cli.Flag{vmTypeFlag()},
			Action: f.action(2, 3, func(c *cli.Context, m *methods.Methods) error {
				t, err := vmType(c)
				if err != nil {
					return err
				}
				args := c.Args()
				_, err = m.Import(f.ctx, &methods.ImportOptions{
					Name:  args[0],
					Type:  t,
					Path:  args[1],
					Media: args.Get(2),
					Wait:  true,
				}, f.progress)
				f.printf("\n")
				return err
			}),
		},
		{
			Name:      "resize",
			Usage:     "resize the disk image of a VM",
			ArgsUsage: "<vm> <size>",
			Action: f.action(2, 2, func(c *cli.Context, m *methods.Methods) error {
				size, err := parseSize(c.Args()[1])
				if err != nil {
					return usageError(c, "invalid size: %v", err)
				}
				_, err = m.Resize(f.ctx, c.Args()[0], size, true, f.progress)
				return err
			}),
		},
		{
			Name:      "list",
			Usage:     "list the disk images of the user",
			ArgsUsage: "[<vm>]",
			Action: f.action(0, 1, func(c *cli.Context, m *methods.Methods) error {
				resp, err := m.ListDiskImages(f.ctx, c.Args().Get(0))
				if err != nil {
					return err
				}
				for _, img := range resp.Images {
					f.printf("%s (%d bytes, %s, %s)", img.Name, img.Size, img.Type, img.Location)
					if img.MinSize != 0 {
						f.printf(" min shrinkable size %d bytes", img.MinSize)
					}
					if img.UserChosenSize {
						f.printf(" user chosen size")
					}
					f.printf("\n")
				}
				f.printf("Total Size (bytes): %d (%s)\n", resp.TotalSize, units.BytesSize(float64(resp.TotalSize)))
				return nil
			}),
		},
		{
			Name:      "logs",
			Usage:     "print the logs of a VM",
			ArgsUsage: "<vm>",
			Action: f.action(1, 1, func(c *cli.Context, m *methods.Methods) error {
				log, err := m.GetVmLogs(f.ctx, c.Args()[0])
				if err != nil {
					return err
				}
				f.printf("%s", log)
				return nil
			}),
		},
		{
			Name:      "share",
			Usage:     "share a path of the user's files with a VM",
			ArgsUsage: "<vm> <path>",
			Action: f.action(2, 2, func(c *cli.Context, m *methods.Methods) error {
				guest, err := m.SharePath(f.ctx, c.Args()[0], c.Args()[1])
				if err != nil {
					return err
				}
				f.printf("%s is available at path %s\n", c.Args()[1], guest)
				return nil
			}),
		},
		{
			Name:      "unshare",
			Usage:     "stop sharing a path with a VM",
			ArgsUsage: "<vm> <path>",
			Action: f.action(2, 2, func(c *cli.Context, m *methods.Methods) error {
				return m.UnsharePath(f.ctx, c.Args()[0], c.Args()[1])
			}),
		},
		{
			Name:      "container",
			Usage:     "create and start a container",
			ArgsUsage: "<vm> <container> [<image server> <image alias> | <rootfs tarball> <metadata tarball>]",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "privileged", Usage: "start the container privileged: true or false"},
				cli.IntFlag{Name: "timeout", Usage: "timeout in seconds"},
				cli.StringFlag{Name: "user", Usage: "set up this user in the container"},
			},
			Action: f.action(2, 4, f.container),
		},
		{
			Name:      "update-container-devices",
			Usage:     "enable or disable devices of a container",
			ArgsUsage: "<vm> <container> <device>:{enable,disable}...",
			Action: f.action(3, -1, func(c *cli.Context, m *methods.Methods) error {
				args := c.Args()
				updates, err := parseDeviceUpdates(args[2:])
				if err != nil {
					return usageError(c, "%v", err)
				}
				results, err := m.ContainerUpdateDevices(f.ctx, args[0], args[1], updates)
				for dev, status := range results {
					f.printf("%s: %s\n", dev, status)
				}
				return err
			}),
		},
		{
			Name:      "usb-attach",
			Usage:     "attach a USB device to a VM",
			ArgsUsage: "<vm> <bus>:<device> [<container>]",
			Action: f.action(2, 3, func(c *cli.Context, m *methods.Methods) error {
				busNum, devNum, err := parseUsbDevice(c.Args()[1])
				if err != nil {
					return usageError(c, "%v", err)
				}
				port, err := m.AttachUsb(f.ctx, c.Args()[0], busNum, devNum, c.Args().Get(2))
				if err != nil {
					return err
				}
				f.printf("USB device attached to guest port %d\n", port)
				return nil
			}),
		},
		{
			Name:      "usb-detach",
			Usage:     "detach a USB device from a VM",
			ArgsUsage: "<vm> <guest port>",
			Action: f.action(2, 2, func(c *cli.Context, m *methods.Methods) error {
				port, err := parseUint32(c.Args()[1])
				if err != nil {
					return usageError(c, "invalid guest port: %v", err)
				}
				return m.DetachUsb(f.ctx, c.Args()[0], port)
			}),
		},
		{
			Name:      "usb-list",
			Usage:     "list the USB devices attached to a VM",
			ArgsUsage: "<vm>",
			Action: f.action(1, 1, func(c *cli.Context, m *methods.Methods) error {
				devices, err := m.ListUsb(f.ctx, c.Args()[0])
				if err != nil {
					return err
				}
				for _, d := range devices {
					f.printf("Guest Port %d: %04x:%04x %s\n", d.GuestPort, d.VendorID, d.ProductID, d.Name)
				}
				return nil
			}),
		},
		{
			Name:      "key-attach",
			Usage:     "attach a security key to a VM",
			ArgsUsage: "<vm> <hidraw path>",
			Action: f.action(2, 2, func(c *cli.Context, m *methods.Methods) error {
				port, err := m.AttachKey(f.ctx, c.Args()[0], c.Args()[1])
				if err != nil {
					return err
				}
				f.printf("Security key attached to guest port %d\n", port)
				return nil
			}),
		},
		{
			Name:      "pvm.send-problem-report",
			Usage:     "send a problem report of a plugin VM",
			ArgsUsage: "<description>...",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "n", Usage: "name of the reporter"},
				cli.StringFlag{Name: "e", Usage: "email of the reporter"},
				cli.StringFlag{Name: "vm", Usage: "the plugin VM the report is about"},
			},
			Action: f.action(1, -1, func(c *cli.Context, m *methods.Methods) error {
				id, err := m.PluginSendProblemReport(f.ctx, c.String("vm"), c.String("n"), c.String("e"),
					strings.Join(c.Args(), " "))
				if err != nil {
					return err
				}
				f.printf("Problem report %s sent\n", id)
				return nil
			}),
		},
		{
			Name:      "inspect-backup",
			Usage:     "describe a VM backup",
			ArgsUsage: "<file> [<removable media>]",
			Action: f.action(1, 2, func(c *cli.Context, m *methods.Methods) error {
				info, err := m.InspectBackup(f.ctx, c.Args()[0], c.Args().Get(1))
				if err != nil {
					return err
				}
				f.printf("%s\n", info)
				return nil
			}),
		},
		{
			Name:  "list-io-devices",
			Usage: "list the input devices and which are primary",
			Action: f.action(0, 0, func(c *cli.Context, m *methods.Methods) error {
				devices, err := m.ListIoDevices(f.ctx)
				if err != nil {
					return err
				}
				for _, d := range devices {
					primary := ""
					if d.Primary {
						primary = " (primary)"
					}
					f.printf("%s: %s%s\n", d.Kind, d.Name, primary)
				}
				return nil
			}),
		},
		{
			Name:  "unset-primary-keyboard",
			Usage: "stop treating any keyboard as primary",
			Action: f.action(0, 0, func(c *cli.Context, m *methods.Methods) error {
				return m.UnsetPrimaryKeyboard(f.ctx)
			}),
		},
		{
			Name:  "unset-primary-mouse",
			Usage: "stop treating any mouse as primary",
			Action: f.action(0, 0, func(c *cli.Context, m *methods.Methods) error {
				return m.UnsetPrimaryMouse(f.ctx)
			}),
		},
	}
}

func (f *Frontend) startCommand() cli.Command {
	return cli.Command{
		Name:      "start",
		Usage:     "start a VM",
		ArgsUsage: "<vm>",
		Flags: []cli.Flag{
			vmTypeFlag(),
			cli.BoolFlag{Name: "enable-gpu", Usage: "enable the virtual GPU"},
			cli.BoolFlag{Name: "enable-big-gl", Usage: "enable the desktop GL driver"},
			cli.BoolFlag{Name: "enable-virtgpu-native-context", Usage: "enable GPU native contexts"},
			cli.BoolFlag{Name: "vtpm-proxy", Usage: "proxy the TPM into the VM"},
			cli.BoolFlag{Name: "enable-audio-capture", Usage: "allow audio capture"},
			cli.StringFlag{Name: "extra-disk", Usage: "extra disk image to attach"},
			cli.StringFlag{Name: "dlc-id", Usage: "DLC providing the VM image"},
			cli.StringFlag{Name: "tools-dlc", Usage: "DLC providing the guest tools"},
			cli.StringFlag{Name: "kernel", Usage: "kernel to boot"},
			cli.StringFlag{Name: "initrd", Usage: "initial ramdisk"},
			cli.StringFlag{Name: "rootfs", Usage: "root filesystem image"},
			cli.BoolFlag{Name: "writable-rootfs", Usage: "open the root filesystem writable"},
			cli.StringFlag{Name: "bios", Usage: "BIOS image"},
			cli.StringFlag{Name: "pflash", Usage: "pflash image"},
			cli.StringFlag{Name: "bios-dlc", Usage: "DLC providing the BIOS"},
			cli.BoolFlag{Name: "no-start-lxd", Usage: "don't start LXD in the VM"},
			cli.StringSliceFlag{Name: "kernel-param", Usage: "extra kernel parameter"},
			cli.StringSliceFlag{Name: "oem-string", Usage: "SMBIOS OEM string"},
			cli.IntFlag{Name: "timeout", Usage: "timeout in seconds"},
			cli.BoolFlag{Name: "no-shell", Usage: "don't open a shell"},
			cli.StringFlag{Name: "user", Usage: "set up this user in the VM"},
			cli.StringFlag{Name: "user-uid", Usage: "uid of the user"},
			cli.StringFlag{Name: "user-groups", Usage: "comma separated groups of the user"},
		},
		Action: f.action(1, 1, f.start),
	}
}

func (f *Frontend) start(c *cli.Context, m *methods.Methods) error {
	t, err := vmType(c)
	if err != nil {
		return err
	}
	o := &methods.StartOptions{
		Name: c.Args()[0],
		Type: t,
		Features: methods.VmFeatures{
			GPU:                  c.Bool("enable-gpu"),
			BigGL:                c.Bool("enable-big-gl"),
			VirtgpuNativeContext: c.Bool("enable-virtgpu-native-context"),
			VtpmProxy:            c.Bool("vtpm-proxy"),
			AudioCapture:         c.Bool("enable-audio-capture"),
			KernelParams:         c.StringSlice("kernel-param"),
			OemStrings:           c.StringSlice("oem-string"),
		},
		ExtraDisk:      c.String("extra-disk"),
		DlcID:          c.String("dlc-id"),
		ToolsDlcID:     c.String("tools-dlc"),
		BiosDlcID:      c.String("bios-dlc"),
		Kernel:         c.String("kernel"),
		Initrd:         c.String("initrd"),
		Rootfs:         c.String("rootfs"),
		WritableRootfs: c.Bool("writable-rootfs"),
		Bios:           c.String("bios"),
		Pflash:         c.String("pflash"),
		NoStartLxd:     c.Bool("no-start-lxd"),
		Timeout:        timeoutFlag(c),
		User:           c.String("user"),
	}
	if uid := c.String("user-uid"); uid != "" {
		v, err := parseUint32(uid)
		if err != nil {
			return usageError(c, "invalid --user-uid: %v", err)
		}
		o.UserUID = &v
	}
	if groups := c.String("user-groups"); groups != "" {
		o.UserGroups = strings.Split(groups, ",")
	}

	if _, err := m.VmcStart(f.ctx, o); err != nil {
		return err
	}
	if c.Bool("no-shell") || f.shell == nil {
		return nil
	}
	return f.shell(o.Name, "", m.Owner())
}

func (f *Frontend) launch(c *cli.Context, m *methods.Methods) error {
	vm, container := DefaultVmName, DefaultContainerName
	if n := len(c.Args()); n > 0 {
		vm = c.Args()[0]
		if n > 1 {
			container = c.Args()[1]
		}
	}

	if _, err := m.VmcStart(f.ctx, &methods.StartOptions{Name: vm, Type: methods.VmTermina}); err != nil {
		return err
	}
	if err := m.ContainerCreate(f.ctx, &methods.ContainerOptions{VmName: vm, Name: container}); err != nil {
		return err
	}
	if err := m.ContainerStart(f.ctx, vm, container, methods.PrivilegeUnchanged, 0); err != nil {
		return err
	}
	if c.Bool("no-shell") || f.shell == nil {
		return nil
	}
	return f.shell(vm, container, m.Owner())
}

func (f *Frontend) create(c *cli.Context, m *methods.Methods) error {
	t, err := vmType(c)
	if err != nil {
		return err
	}
	o := &methods.CreateOptions{
		Name:      c.Args()[0],
		Type:      t,
		ImageType: methods.DiskImageType(c.String("image-type")),
		Source:    c.Args().Get(1),
		Media:     c.Args().Get(2),
	}
	if s := c.String("size"); s != "" {
		if o.Size, err = parseSize(s); err != nil {
			return usageError(c, "invalid --size: %v", err)
		}
	}
	for _, p := range c.StringSlice("param") {
		key, value, ok := strings.Cut(p, "=")
		if !ok {
			return usageError(c, "invalid --param %q, expected key=value", p)
		}
		o.Params = append(o.Params, methods.DiskImageParam{Key: key, Value: value})
	}

	path, err := m.Create(f.ctx, o, f.progress)
	if err != nil {
		return err
	}
	f.printf("%s\n", path)
	return nil
}

func (f *Frontend) container(c *cli.Context, m *methods.Methods) error {
	args := c.Args()
	o := &methods.ContainerOptions{
		VmName:  args[0],
		Name:    args[1],
		Timeout: timeoutFlag(c),
	}
	switch len(args) {
	case 2:
	case 4:
		if strings.HasPrefix(args[2], "https://") || strings.HasPrefix(args[2], "http://") {
			o.ImageServer, o.ImageAlias = args[2], args[3]
		} else {
			o.RootfsPath, o.MetadataPath = args[2], args[3]
		}
	default:
		return usageError(c, "image server and alias, or rootfs and metadata tarballs, go together")
	}

	privilege := methods.PrivilegeUnchanged
	switch c.String("privileged") {
	case "":
	case "true":
		privilege = methods.PrivilegePrivileged
	case "false":
		privilege = methods.PrivilegeUnprivileged
	default:
		return usageError(c, "--privileged must be true or false")
	}

	if err := m.ContainerCreate(f.ctx, o); err != nil {
		return err
	}
	if err := m.ContainerStart(f.ctx, o.VmName, o.Name, privilege, o.Timeout); err != nil {
		return err
	}
	if user := c.String("user"); user != "" {
		return m.ContainerSetupUser(f.ctx, o.VmName, o.Name, user)
	}
	return nil
}
