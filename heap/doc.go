// Package heap implements a segregated-fit dynamic memory allocator over a page-granular arena.
//
// # Layout
//
// The heap lives inside the byte region of an arena.Provider. Every block begins with an 8-byte
// header word holding the block size, an allocated bit and a previous-allocated bit. Free blocks
// additionally carry a footer word duplicating the header (the boundary tag) and two free list
// link words at the start of their payload. Allocated blocks carry no footer; their successor's
// previous-allocated bit records that they are in use.
//
//	[0, 56)        padding, so that every payload is 64-byte aligned
//	[56, 120)      prologue block, permanently allocated
//	[120, end-8)   ordinary blocks
//	[end-8, end)   epilogue header, permanently allocated, size 0
//
// Pointers handed to callers are arena offsets of payloads. NullPointer (0) means "no allocation".
//
// # Free lists
//
// Free blocks are filed in NumFreeLists circular, doubly linked lists with sentinel heads. The
// first nine lists are size classes bounded by 1, 2, 3, 5, 8, 13, 21 and 34 times MinBlockSize
// with an overflow class above that. The last list holds only the wilderness block: the free
// block, if any, that ends at the epilogue. The wilderness is the block that absorbs heap growth.
//
// # Thread Safety
//
// A Heap is not safe for concurrent use. Callers must serialize access externally.
package heap
