// Command ext2sh is an interactive shell over an ext2-compatible disk image.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	times "gopkg.in/djherbis/times.v1"

	"github.com/ext2go/ext2go/backend/file"
	"github.com/ext2go/ext2go/filesystem/ext2"
	"github.com/ext2go/ext2go/internal/shellutil"
	"github.com/ext2go/ext2go/util"
)

var log = logrus.StandardLogger()

func main() {
	os.Exit(run(os.Args, os.Stdin, os.Stdout))
}

func run(args []string, in *os.File, out *os.File) int {
	if len(args) == 3 && args[1] == "mkfs" {
		// No explicit size: the image must already exist, typically a
		// block device, whose size is derived via file.Size rather than
		// taken from argv.
		return runMkfsAuto(args[2], out)
	}
	if len(args) == 4 && args[1] == "mkfs" {
		return runMkfs(args[2], args[3], out)
	}
	if len(args) > 1 && args[1] == "mkfs" {
		fmt.Fprintln(out, "usage: ext2sh mkfs <image> [size-bytes]")
		return 1
	}
	if len(args) != 2 {
		fmt.Fprintf(out, "usage: %s <path-to-ext2-image>\n", args[0])
		return 1
	}

	imagePath := args[1]
	b, err := file.OpenFromPath(imagePath, false)
	if err != nil {
		log.WithError(err).Error("fatal: unable to open disk image")
		return 1
	}
	defer b.Close()

	v, err := ext2.Open(b, false)
	if err != nil {
		log.WithError(err).Error("fatal: not a valid ext2 image")
		return 1
	}
	defer v.Close()

	sh := &shell{
		vol:       v,
		cwd:       v.RootInode(),
		pwd:       "/",
		out:       out,
		imagePath: imagePath,
	}
	return sh.loop(in)
}

// runMkfsAuto formats an already-existing image (typically a block
// device) whose size is not known to the caller. file.Size uses
// Stat().Size() for a plain file but falls back to the BLKGETSIZE64
// ioctl (DeviceSize) for a device special file, where Stat() is unreliable.
func runMkfsAuto(imagePath string, out *os.File) int {
	b, err := file.OpenFromPath(imagePath, false)
	if err != nil {
		log.WithError(err).Error("fatal: unable to open device/image")
		return 1
	}
	defer b.Close()

	size, err := file.Size(b)
	if err != nil {
		log.WithError(err).Error("fatal: unable to determine device/image size")
		return 1
	}
	if _, err := ext2.Format(b, size, nil); err != nil {
		log.WithError(err).Error("fatal: format failed")
		return 1
	}
	fmt.Fprintf(out, "formatted %s (%d bytes, size auto-detected)\n", imagePath, size)
	return 0
}

func runMkfs(imagePath, sizeArg string, out *os.File) int {
	var size int64
	if _, err := fmt.Sscanf(sizeArg, "%d", &size); err != nil || size <= 0 {
		fmt.Fprintf(out, "invalid size: %q\n", sizeArg)
		return 1
	}
	b, err := file.CreateFromPath(imagePath, size)
	if err != nil {
		log.WithError(err).Error("fatal: unable to create image")
		return 1
	}
	defer b.Close()
	if _, err := ext2.Format(b, size, nil); err != nil {
		log.WithError(err).Error("fatal: format failed")
		return 1
	}
	fmt.Fprintf(out, "formatted %s (%d bytes)\n", imagePath, size)
	return 0
}

type shell struct {
	vol       *ext2.Volume
	cwd       uint32
	pwd       string
	out       *os.File
	imagePath string
}

func (s *shell) loop(in *os.File) int {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintf(s.out, "\n[%s]> ", s.pwd)
		if !scanner.Scan() {
			fmt.Fprintln(s.out, "\nexiting (EOF)...")
			return 0
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "exit" || fields[0] == "quit" {
			return 0
		}
		s.dispatch(fields)
	}
}

func (s *shell) dispatch(fields []string) {
	cmd, rest := fields[0], fields[1:]
	switch cmd {
	case "help":
		printHelp(s.out)
	case "info":
		s.cmdInfo()
	case "attr":
		s.cmdAttr(rest)
	case "cat":
		s.cmdCat(rest)
	case "ls":
		s.cmdLs(rest)
	case "cd":
		s.cmdCd(rest)
	case "pwd":
		fmt.Fprintln(s.out, s.pwd)
	case "touch":
		s.cmdTouch(rest)
	case "rm":
		s.cmdRm(rest)
	case "mkdir":
		s.cmdMkdir(rest)
	case "rmdir":
		s.cmdRmdir(rest)
	case "rename":
		s.cmdRename(rest)
	case "cp":
		s.cmdCp(rest)
	case "print":
		s.cmdPrint(rest)
	default:
		fmt.Fprintf(s.out, "unknown command: %q. type 'help' for a list of commands.\n", cmd)
	}
}

func printHelp(out *os.File) {
	fmt.Fprint(out, `
--- ext2sh commands ---
  info                      show superblock and group summary
  attr <path>               show an entry's metadata
  cat <path>                print a regular file's content
  ls [path]                 list a directory (default: current directory)
  cd <path>                 change the current directory
  pwd                       print the current directory
  touch <path>              create an empty regular file
  rm <path>                 remove a regular file
  mkdir <path>              create a directory
  rmdir <path>              remove an empty directory
  rename <old> <new>        rename within the current directory
  cp <src> <dst>            copy a file out to the host filesystem
  print superblock          dump the superblock
  print inode <n>           dump one inode
  print groups              dump the group descriptor table
  help                      show this message
  exit | quit               leave the shell
------------------------------------------------------
`)
}

func requireOneArg(args []string) (string, bool) {
	if len(args) != 1 {
		return "", false
	}
	return args[0], true
}

func (s *shell) cmdLs(args []string) {
	path := ""
	if len(args) == 1 {
		path = args[0]
	} else if len(args) > 1 {
		fmt.Fprintln(s.out, "usage: ls [path]")
		return
	}
	entries, err := s.vol.Ls(s.cwd, path)
	if err != nil {
		fmt.Fprintln(s.out, "ls:", err)
		return
	}
	for _, e := range entries {
		kind := "-"
		if e.IsDir {
			kind = "d"
		}
		fmt.Fprintf(s.out, "%s %6d %6d  %s\n", kind, e.Inode, e.Size, e.Name)
	}
}

func (s *shell) cmdCat(args []string) {
	path, ok := requireOneArg(args)
	if !ok {
		fmt.Fprintln(s.out, "usage: cat <path>")
		return
	}
	data, err := s.vol.Cat(s.cwd, path)
	if err != nil {
		fmt.Fprintln(s.out, "cat:", err)
		return
	}
	s.out.Write(data)
}

func (s *shell) cmdTouch(args []string) {
	path, ok := requireOneArg(args)
	if !ok {
		fmt.Fprintln(s.out, "usage: touch <path>")
		return
	}
	if err := s.vol.Touch(s.cwd, path); err != nil {
		fmt.Fprintln(s.out, "touch:", err)
	}
}

func (s *shell) cmdMkdir(args []string) {
	path, ok := requireOneArg(args)
	if !ok {
		fmt.Fprintln(s.out, "usage: mkdir <path>")
		return
	}
	if err := s.vol.Mkdir(s.cwd, path); err != nil {
		fmt.Fprintln(s.out, "mkdir:", err)
	}
}

func (s *shell) cmdRm(args []string) {
	path, ok := requireOneArg(args)
	if !ok {
		fmt.Fprintln(s.out, "usage: rm <path>")
		return
	}
	if err := s.vol.Rm(s.cwd, path); err != nil {
		fmt.Fprintln(s.out, "rm:", err)
	}
}

func (s *shell) cmdRmdir(args []string) {
	path, ok := requireOneArg(args)
	if !ok {
		fmt.Fprintln(s.out, "usage: rmdir <path>")
		return
	}
	if err := s.vol.Rmdir(s.cwd, path); err != nil {
		fmt.Fprintln(s.out, "rmdir:", err)
	}
}

func (s *shell) cmdRename(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.out, "usage: rename <old> <new>")
		return
	}
	if err := s.vol.Rename(s.cwd, args[0], args[1]); err != nil {
		fmt.Fprintln(s.out, "rename:", err)
	}
}

func (s *shell) cmdCp(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.out, "usage: cp <src-in-image> <dst-on-host>")
		return
	}
	data, err := s.vol.CpOut(s.cwd, args[0])
	if err != nil {
		fmt.Fprintln(s.out, "cp:", err)
		return
	}
	f, err := os.OpenFile(args[1], os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		fmt.Fprintln(s.out, "cp:", err)
		return
	}
	defer f.Close()
	n, err := f.Write(data)
	if err != nil {
		fmt.Fprintln(s.out, "cp:", err)
		return
	}
	if n != len(data) {
		fmt.Fprintf(s.out, "cp: short write: wrote %d of %d bytes\n", n, len(data))
	}
}

func (s *shell) cmdCd(args []string) {
	path, ok := requireOneArg(args)
	if !ok {
		fmt.Fprintln(s.out, "usage: cd <path>")
		return
	}
	target, err := s.vol.ResolvePath(s.cwd, path)
	if err != nil {
		fmt.Fprintln(s.out, "cd:", err)
		return
	}
	isDir, err := s.vol.IsDir(target)
	if err != nil {
		fmt.Fprintln(s.out, "cd:", err)
		return
	}
	if !isDir {
		fmt.Fprintln(s.out, "cd: not a directory:", path)
		return
	}
	s.cwd = target
	s.pwd = shellutil.Join(s.pwd, path)
}

func (s *shell) cmdAttr(args []string) {
	path, ok := requireOneArg(args)
	if !ok {
		fmt.Fprintln(s.out, "usage: attr <path>")
		return
	}
	target, err := s.vol.ResolvePath(s.cwd, path)
	if err != nil {
		fmt.Fprintln(s.out, "attr:", err)
		return
	}
	attrs, err := s.vol.InodeAttrs(target)
	if err != nil {
		fmt.Fprintln(s.out, "attr:", err)
		return
	}
	fmt.Fprintf(s.out, "inode:       %d\n", attrs.Number)
	fmt.Fprintf(s.out, "mode:        %#o\n", attrs.Mode)
	fmt.Fprintf(s.out, "size:        %d\n", attrs.Size)
	fmt.Fprintf(s.out, "links:       %d\n", attrs.LinksCount)
	fmt.Fprintf(s.out, "atime:       %d\n", attrs.Atime)
	fmt.Fprintf(s.out, "ctime:       %d\n", attrs.Ctime)
	fmt.Fprintf(s.out, "mtime:       %d\n", attrs.Mtime)
}

func (s *shell) cmdInfo() {
	info := s.vol.Info()
	fmt.Fprintf(s.out, "block size:       %d\n", info.BlockSize)
	fmt.Fprintf(s.out, "blocks:           %d (free %d)\n", info.BlocksCount, info.FreeBlocksCount)
	fmt.Fprintf(s.out, "inodes:           %d (free %d)\n", info.InodesCount, info.FreeInodesCount)
	fmt.Fprintf(s.out, "groups:           %d\n", info.GroupCount)
	fmt.Fprintf(s.out, "volume name:      %s\n", info.VolumeName)

	t, err := times.Stat(s.imagePath)
	if err != nil {
		log.WithError(err).Debug("unable to stat host image file")
		return
	}
	fmt.Fprintf(s.out, "image mtime:      %s\n", t.ModTime().Format(time.RFC3339))
	fmt.Fprintf(s.out, "image atime:      %s\n", t.AccessTime().Format(time.RFC3339))
	if t.HasChangeTime() {
		fmt.Fprintf(s.out, "image ctime:      %s\n", t.ChangeTime().Format(time.RFC3339))
	}
	if t.HasBirthTime() {
		fmt.Fprintf(s.out, "image birthtime:  %s\n", t.BirthTime().Format(time.RFC3339))
	}
}

func (s *shell) cmdPrint(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, "usage: print superblock | print inode <n> | print groups")
		return
	}
	switch args[0] {
	case "superblock":
		s.cmdInfo()
		fmt.Fprint(s.out, util.DumpByteSlice(s.vol.RawSuperblock(), 16, true, true, false, nil))
	case "groups":
		groups := s.vol.GroupSummaries()
		for i, g := range groups {
			fmt.Fprintf(s.out, "group %d: block_bitmap=%d inode_bitmap=%d inode_table=%d free_blocks=%d free_inodes=%d used_dirs=%d\n",
				i, g.BlockBitmap, g.InodeBitmap, g.InodeTable, g.FreeBlocksCount, g.FreeInodesCount, g.UsedDirsCount)
			raw, err := s.vol.RawGroupDescriptor(i)
			if err != nil {
				fmt.Fprintln(s.out, "print groups:", err)
				continue
			}
			fmt.Fprint(s.out, util.DumpByteSlice(raw, 16, true, true, false, nil))
		}
	case "inode":
		if len(args) != 2 {
			fmt.Fprintln(s.out, "usage: print inode <n>")
			return
		}
		var n uint32
		if _, err := fmt.Sscanf(args[1], "%d", &n); err != nil {
			fmt.Fprintln(s.out, "print inode: invalid inode number:", args[1])
			return
		}
		attrs, err := s.vol.InodeAttrs(n)
		if err != nil {
			fmt.Fprintln(s.out, "print inode:", err)
			return
		}
		fmt.Fprintf(s.out, "inode %d: mode=%#o size=%d links=%d\n", attrs.Number, attrs.Mode, attrs.Size, attrs.LinksCount)
		raw, err := s.vol.RawInode(n)
		if err != nil {
			fmt.Fprintln(s.out, "print inode:", err)
			return
		}
		fmt.Fprint(s.out, util.DumpByteSlice(raw, 16, true, true, false, nil))
	default:
		fmt.Fprintf(s.out, "unknown 'print' argument: %q\n", args[0])
	}
}
